// Package normalize cleans raw speech-to-text output and target answers before
// they are compared.
//
// The base transform is:
//
//  1. Unicode NFC composition, so that decomposed jamo sequences produced by
//     some platforms compare equal to precomposed Hangul syllables.
//  2. Trim surrounding whitespace.
//  3. Lowercase Latin-script letters. Hangul has no case and is untouched.
//  4. Drop every character outside the allow-list. The permissive mode keeps
//     letters, digits, underscore, whitespace and Hangul; the aggressive mode
//     keeps only Hangul syllables, Hangul compatibility consonants, and
//     whitespace.
//  5. Collapse whitespace runs to a single space and trim again.
//
// Every exported transform is pure, total, and idempotent.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Hangul ranges recognised by the allow-list.
const (
	syllableFirst  = '\uAC00' // 가
	syllableLast   = '\uD7A3' // 힣
	consonantFirst = '\u3131' // ㄱ
	consonantLast  = '\u314E' // ㅎ
)

// phoneticFolds maps near-homophonic syllables onto one representative.
// Learners (and STT engines) rarely distinguish these pairs in speech.
var phoneticFolds = strings.NewReplacer(
	"애", "에",
	"얘", "예",
	"왜", "웨",
	"외", "웨",
)

// fillerRunes are hesitation syllables. A token made up solely of repetitions
// of one of them (e.g. "음", "음음", "어어어") is treated as a filler word.
var fillerRunes = []rune{'음', '어', '그', '저', '뭐'}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithAggressive switches the allow-list to Hangul and whitespace only.
func WithAggressive() Option {
	return func(n *Normalizer) {
		n.aggressive = true
	}
}

// Normalizer applies the text-cleaning pipeline. The zero value is a
// permissive normalizer. Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	aggressive bool
}

// New returns a [Normalizer] configured with opts.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Aggressive reports whether n runs in aggressive mode.
func (n *Normalizer) Aggressive() bool {
	return n.aggressive
}

// Normalize returns the cleaned form of text. Empty input yields "".
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)
	text = strings.TrimSpace(text)
	text = strings.Map(lowerLatin, text)
	text = strings.Map(n.keep, text)
	// Dropping a rune can leave conjoining jamo adjacent.
	text = norm.NFC.String(text)
	return collapseSpaces(text)
}

// Phonetic normalizes text and then folds the near-homophonic syllable pairs
// onto their representative (애→에, 얘→예, 왜→웨, 외→웨).
func (n *Normalizer) Phonetic(text string) string {
	return phoneticFolds.Replace(n.Normalize(text))
}

// RemoveFillers normalizes text and then drops whole-word hesitation tokens
// such as "음" or "어어".
func (n *Normalizer) RemoveFillers(text string) string {
	fields := strings.Fields(n.Normalize(text))
	kept := fields[:0]
	for _, f := range fields {
		if !isFiller(f) {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// RepeatedChars shortens every run of one character longer than max down to
// exactly max characters ("사과과과" with max 2 becomes "사과과"). A max below
// 1 is treated as 1. It does not normalize text first.
func RepeatedChars(text string, max int) string {
	if max < 1 {
		max = 1
	}
	var (
		b    strings.Builder
		prev rune = utf8.RuneError
		run  int
	)
	b.Grow(len(text))
	for i, r := range text {
		if i > 0 && r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run <= max {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsHangulSyllable reports whether r is a precomposed Hangul syllable.
func IsHangulSyllable(r rune) bool {
	return r >= syllableFirst && r <= syllableLast
}

// IsHangul reports whether r is a Hangul syllable or a Hangul compatibility
// consonant.
func IsHangul(r rune) bool {
	return IsHangulSyllable(r) || (r >= consonantFirst && r <= consonantLast)
}

// ContainsHangul reports whether s contains at least one Hangul rune.
func ContainsHangul(s string) bool {
	return strings.IndexFunc(s, IsHangul) >= 0
}

func (n *Normalizer) keep(r rune) rune {
	if unicode.IsSpace(r) || IsHangul(r) {
		return r
	}
	if n.aggressive {
		return -1
	}
	if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
		return r
	}
	return -1
}

func lowerLatin(r rune) rune {
	if r < utf8.RuneSelf || unicode.Is(unicode.Latin, r) {
		return unicode.ToLower(r)
	}
	return r
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isFiller(token string) bool {
	first, size := utf8.DecodeRuneInString(token)
	if size == 0 {
		return false
	}
	known := false
	for _, f := range fillerRunes {
		if f == first {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	for _, r := range token {
		if r != first {
			return false
		}
	}
	return true
}
