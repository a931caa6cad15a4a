// Package keyword turns normalized text into content keywords, expands answer
// keywords against a synonym table, and measures how much of an answer's
// keyword set a transcript covers.
package keyword

import (
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
)

// DefaultMinLength is the minimum keyword length, in runes, used when an
// extractor is constructed with a non-positive minimum.
const DefaultMinLength = 2

// Extractor splits normalized text into an ordered, duplicate-free list of
// keywords.
//
// Implementations must be safe for concurrent use and must never fail: an
// extractor that cannot analyse a token keeps it verbatim.
type Extractor interface {
	// Extract returns the keywords of text in first-occurrence order.
	Extract(text string) []string
}

// Fingerprinter is implemented by extractors whose output depends on
// configuration. Equal fingerprints mean equal output for the same text.
type Fingerprinter interface {
	Fingerprint() string
}

// Compile-time interface assertions.
var (
	_ Extractor     = (*Basic)(nil)
	_ Extractor     = (*ParticleStripper)(nil)
	_ Fingerprinter = (*Basic)(nil)
	_ Fingerprinter = (*ParticleStripper)(nil)
)

// Basic is the whitespace-splitting extractor. A token is a keyword when it
// contains at least one Hangul rune and is at least MinLength runes long.
type Basic struct {
	MinLength int
}

// NewBasic returns a [Basic] extractor. A minLength below 1 selects
// [DefaultMinLength].
func NewBasic(minLength int) *Basic {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &Basic{MinLength: minLength}
}

// Extract implements [Extractor].
func (b *Basic) Extract(text string) []string {
	minLength := b.MinLength
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		if !isKeyword(tok, minLength) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Fingerprint implements [Fingerprinter].
func (b *Basic) Fingerprint() string {
	minLength := b.MinLength
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return "basic/" + strconv.Itoa(minLength)
}

// Extract runs the [Basic] extractor with minLength over text.
func Extract(text string, minLength int) []string {
	return NewBasic(minLength).Extract(text)
}

func isKeyword(tok string, minLength int) bool {
	return utf8.RuneCountInString(tok) >= minLength && normalize.ContainsHangul(tok)
}

// Coverage returns the fraction of target keywords present in candidate,
// treating both as sets. An empty target yields 1.0: there is nothing to
// miss.
func Coverage(candidate, target []string) float64 {
	targetSet := toSet(target)
	if len(targetSet) == 0 {
		return 1.0
	}
	candidateSet := toSet(candidate)
	matched := 0
	for k := range targetSet {
		if _, ok := candidateSet[k]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(targetSet))
}

// Missing returns the target keywords absent from candidate, sorted.
func Missing(candidate, target []string) []string {
	candidateSet := toSet(candidate)
	var out []string
	for k := range toSet(target) {
		if _, ok := candidateSet[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
