package phonetic_test

import (
	"math"
	"slices"
	"testing"

	"github.com/MrWong99/speakeval/internal/evaluation/phonetic"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestDecompose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "사과", want: "ㅅㅏㄱㅘ"},
		{in: "빨간색", want: "ㅃㅏㄹㄱㅏㄴㅅㅐㄱ"},
		{in: "가", want: "ㄱㅏ"},
		{in: "힣", want: "ㅎㅣㅎ"},
		{in: "닭 a1", want: "ㄷㅏㄺ a1"},
		{in: "ㅋㅋ", want: "ㅋㅋ"},
	}
	for _, tt := range tests {
		if got := phonetic.Decompose(tt.in); got != tt.want {
			t.Errorf("Decompose(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "either empty", a: "", b: "사과", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
		{name: "identical", a: "사과", b: "사과", want: 1},
		// ㅅㅏㄱㅘ vs ㅆㅏㄱㅘ: one substitution over four jamo.
		{name: "tense onset", a: "사과", b: "싸과", want: 0.75},
		// 23 units, one substitution.
		{name: "sentence", a: "싸과는 빨간색이에요", b: "사과는 빨간색이에요", want: 1 - 1.0/23},
		{name: "completely different latin", a: "abc", b: "xyz", want: 0},
	}
	for _, tt := range tests {
		if got := phonetic.Similarity(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("%s: Similarity(%q, %q) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSyllableSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "either empty", a: "사과", b: "", want: 0},
		{name: "identical", a: "사과", b: "사과", want: 1},
		{name: "one of two", a: "사과", b: "싸과", want: 0.5},
		{name: "no syllables on either side", a: "abc", b: "xyz", want: 1},
		{name: "non-hangul ignored", a: "사과!", b: "사 과", want: 1},
		{name: "sentence", a: "싸과는 빨간색이에요", b: "사과는 빨간색이에요", want: 8.0 / 9},
	}
	for _, tt := range tests {
		if got := phonetic.SyllableSimilarity(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("%s: SyllableSimilarity(%q, %q) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity_SymmetricAndReflexive(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"사과는 빨간색이에요", "싸과는 빨간색이예요"},
		{"학교에 가요", "학꾜에 갔어요"},
		{"안녕하세요", "hello"},
		{"가", "각"},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		if x, y := phonetic.Similarity(a, b), phonetic.Similarity(b, a); x != y {
			t.Errorf("Similarity not symmetric for (%q, %q): %v vs %v", a, b, x, y)
		}
		if x, y := phonetic.SyllableSimilarity(a, b), phonetic.SyllableSimilarity(b, a); x != y {
			t.Errorf("SyllableSimilarity not symmetric for (%q, %q): %v vs %v", a, b, x, y)
		}
		for _, s := range p {
			if got := phonetic.Similarity(s, s); got != 1 {
				t.Errorf("Similarity(%q, %q) = %v, want 1", s, s, got)
			}
		}
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	a, b := "싸과는 빨간색이에요", "사과는 빨간색이에요"
	want := 0.7*(1-1.0/23) + 0.3*(8.0/9)
	if got := phonetic.Score(a, b); !approx(got, want) {
		t.Errorf("Score(%q, %q) = %v, want %v", a, b, got, want)
	}
	if got := phonetic.Score("", b); got != 0 {
		t.Errorf("Score(\"\", %q) = %v, want 0", b, got)
	}
	if got := phonetic.Score(b, b); !approx(got, 1) {
		t.Errorf("Score(%q, %q) = %v, want 1", b, b, got)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		actual, expected string
		want             []phonetic.ErrorPair
	}{
		{actual: "싸과", expected: "사과", want: []phonetic.ErrorPair{{Actual: "싸", Expected: "사"}}},
		{actual: "사과", expected: "사과", want: nil},
		{actual: "a과", expected: "사과", want: nil},
		{actual: "싸과는 더 긴 문장", expected: "사고", want: []phonetic.ErrorPair{{Actual: "싸", Expected: "사"}, {Actual: "과", Expected: "고"}}},
		{actual: "", expected: "사과", want: nil},
	}
	for _, tt := range tests {
		if got := phonetic.Errors(tt.actual, tt.expected); !slices.Equal(got, tt.want) {
			t.Errorf("Errors(%q, %q) = %v, want %v", tt.actual, tt.expected, got, tt.want)
		}
	}
}

func TestWordErrorRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref, hyp string
		want     float64
	}{
		{ref: "", hyp: "", want: 0},
		{ref: "", hyp: "사과", want: 1},
		{ref: "사과는 빨간색이에요", hyp: "사과는 빨간색이에요", want: 0},
		{ref: "사과는 빨간색이에요", hyp: "싸과는 빨간색이에요", want: 0.5},
		{ref: "사과는 빨간색이에요", hyp: "", want: 1},
		{ref: "나는 학교에 간다", hyp: "나는 간다", want: 1.0 / 3},
	}
	for _, tt := range tests {
		if got := phonetic.WordErrorRate(tt.ref, tt.hyp); !approx(got, tt.want) {
			t.Errorf("WordErrorRate(%q, %q) = %v, want %v", tt.ref, tt.hyp, got, tt.want)
		}
	}
}

func TestAccuracy(t *testing.T) {
	t.Parallel()

	r := phonetic.Accuracy("싸과", "사과")
	if r.JamoSimilarity != 0.75 {
		t.Errorf("JamoSimilarity = %v, want 0.75", r.JamoSimilarity)
	}
	if r.SyllableSimilarity != 0.5 {
		t.Errorf("SyllableSimilarity = %v, want 0.5", r.SyllableSimilarity)
	}
	if r.ErrorCount != 1 || len(r.Errors) != 1 {
		t.Errorf("ErrorCount = %d, len(Errors) = %d, want 1 and 1", r.ErrorCount, len(r.Errors))
	}
	if r.WordErrorRate != 1 {
		t.Errorf("WordErrorRate = %v, want 1", r.WordErrorRate)
	}

	clean := phonetic.Accuracy("사과", "사과")
	if clean.Errors == nil {
		t.Error("Accuracy for identical input returned nil Errors, want empty slice")
	}
}
