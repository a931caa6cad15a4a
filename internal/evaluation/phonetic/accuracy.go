package phonetic

import (
	"math"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Report is the diagnostic breakdown of a transcript's pronunciation.
type Report struct {
	JamoSimilarity     float64     `json:"jamo_similarity"`
	SyllableSimilarity float64     `json:"syllable_similarity"`
	Errors             []ErrorPair `json:"errors"`
	ErrorCount         int         `json:"error_count"`
	WordErrorRate      float64     `json:"word_error_rate"`
}

// Accuracy builds a [Report] comparing actual against expected. Similarities
// and the word error rate are rounded to four decimal places.
func Accuracy(actual, expected string) Report {
	errs := Errors(actual, expected)
	if errs == nil {
		errs = []ErrorPair{}
	}
	return Report{
		JamoSimilarity:     round4(Similarity(actual, expected)),
		SyllableSimilarity: round4(SyllableSimilarity(actual, expected)),
		Errors:             errs,
		ErrorCount:         len(errs),
		WordErrorRate:      round4(WordErrorRate(expected, actual)),
	}
}

// WordErrorRate returns the word-level edit distance between reference and
// hypothesis divided by the number of reference words. An empty reference
// yields 0 for an empty hypothesis and 1 otherwise.
func WordErrorRate(reference, hypothesis string) float64 {
	ref := strings.Fields(reference)
	hyp := strings.Fields(hypothesis)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	src, dst := wordRunes(ref, hyp)
	dist := levenshtein.DistanceForStrings(src, dst, unitCost)
	return float64(dist) / float64(len(ref))
}

var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// wordRunes maps each distinct word to its own rune from a private use plane
// so that a rune-level edit distance counts whole-word edits.
func wordRunes(a, b []string) ([]rune, []rune) {
	ids := make(map[string]rune)
	encode := func(words []string) []rune {
		out := make([]rune, len(words))
		for i, w := range words {
			id, ok := ids[w]
			if !ok {
				id = rune(0xF0000 + len(ids))
				ids[w] = id
			}
			out[i] = id
		}
		return out
	}
	return encode(a), encode(b)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
