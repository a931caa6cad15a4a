// Package phonetic scores how closely a transcript's pronunciation matches an
// answer by comparing Hangul text at two granularities.
//
// Jamo similarity decomposes every precomposed syllable into its initial,
// medial, and (optional) final jamo and runs a unit-cost Levenshtein distance
// over the resulting sequences, so "사" versus "싸" costs a single jamo
// substitution rather than a whole syllable. Syllable similarity applies the
// same ratio to the Hangul syllables alone. Both ratios are
// max(0, 1 - distance/maxLen).
//
// All functions in this package are pure and safe for concurrent use.
package phonetic

import (
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
)

// Weights of the two granularities in [Score].
const (
	JamoWeight     = 0.7
	SyllableWeight = 0.3
)

const (
	syllableBase = 0xAC00
	jungCount    = 21
	jongCount    = 28
)

var (
	chosung = []rune{
		'ㄱ', 'ㄲ', 'ㄴ', 'ㄷ', 'ㄸ', 'ㄹ', 'ㅁ', 'ㅂ', 'ㅃ',
		'ㅅ', 'ㅆ', 'ㅇ', 'ㅈ', 'ㅉ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
	}
	jungsung = []rune{
		'ㅏ', 'ㅐ', 'ㅑ', 'ㅒ', 'ㅓ', 'ㅔ', 'ㅕ', 'ㅖ', 'ㅗ', 'ㅘ',
		'ㅙ', 'ㅚ', 'ㅛ', 'ㅜ', 'ㅝ', 'ㅞ', 'ㅟ', 'ㅠ', 'ㅡ', 'ㅢ', 'ㅣ',
	}
	// Index 0 means "no final consonant".
	jongsung = []rune{
		0, 'ㄱ', 'ㄲ', 'ㄳ', 'ㄴ', 'ㄵ', 'ㄶ', 'ㄷ', 'ㄹ', 'ㄺ',
		'ㄻ', 'ㄼ', 'ㄽ', 'ㄾ', 'ㄿ', 'ㅀ', 'ㅁ', 'ㅂ', 'ㅄ', 'ㅅ',
		'ㅆ', 'ㅇ', 'ㅈ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
	}
)

// Decompose replaces every precomposed Hangul syllable in text with its jamo
// sequence. Any other rune passes through unchanged.
func Decompose(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range text {
		if !normalize.IsHangulSyllable(r) {
			b.WriteRune(r)
			continue
		}
		code := int(r - syllableBase)
		b.WriteRune(chosung[code/(jungCount*jongCount)])
		b.WriteRune(jungsung[(code%(jungCount*jongCount))/jongCount])
		if jong := code % jongCount; jong > 0 {
			b.WriteRune(jongsung[jong])
		}
	}
	return b.String()
}

// Similarity returns the jamo-level similarity of a and b in [0, 1]. It is 0
// when either input is empty.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return ratio([]rune(Decompose(a)), []rune(Decompose(b)))
}

// SyllableSimilarity returns the similarity of the Hangul syllables of a and
// b in [0, 1]. Non-syllable runes are dropped before comparison. It is 0 when
// either input is empty and 1 when neither contains a syllable.
func SyllableSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return ratio(syllables(a), syllables(b))
}

// Score is the combined phonetic score used by the scorer:
// JamoWeight*Similarity + SyllableWeight*SyllableSimilarity. If the syllable
// comparison cannot be computed the jamo similarity is returned alone.
func Score(a, b string) float64 {
	jamo := Similarity(a, b)
	syl, ok := safeSyllableSimilarity(a, b)
	if !ok {
		return jamo
	}
	return JamoWeight*jamo + SyllableWeight*syl
}

func safeSyllableSimilarity(a, b string) (v float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("phonetic: syllable similarity failed, using jamo similarity only", "panic", r)
			v, ok = 0, false
		}
	}()
	return SyllableSimilarity(a, b), true
}

// ErrorPair is one position-aligned mismatch between a transcript and an
// answer.
type ErrorPair struct {
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
}

// Errors compares actual and expected position by position up to the shorter
// length and returns every mismatch where both runes are Hangul syllables.
// It is a diagnostic aid and does not affect scoring.
func Errors(actual, expected string) []ErrorPair {
	ra, re := []rune(actual), []rune(expected)
	n := min(len(ra), len(re))
	var out []ErrorPair
	for i := range n {
		if ra[i] == re[i] {
			continue
		}
		if normalize.IsHangulSyllable(ra[i]) && normalize.IsHangulSyllable(re[i]) {
			out = append(out, ErrorPair{Actual: string(ra[i]), Expected: string(re[i])})
		}
	}
	return out
}

func syllables(s string) []rune {
	out := make([]rune, 0, len(s)/3)
	for _, r := range s {
		if normalize.IsHangulSyllable(r) {
			out = append(out, r)
		}
	}
	return out
}

func ratio(a, b []rune) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	dist := matchr.Levenshtein(string(a), string(b))
	return max(0, 1-float64(dist)/float64(maxLen))
}
