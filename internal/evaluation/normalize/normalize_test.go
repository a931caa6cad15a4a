package normalize_test

import (
	"testing"

	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		aggressive bool
		in         string
		want       string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   \t\n ", want: ""},
		{name: "collapse and trim", in: "  사과는   빨간색  ", want: "사과는 빨간색"},
		{name: "punctuation stripped", in: "사과는 빨간색이에요!", want: "사과는 빨간색이에요"},
		{name: "latin lowercased", in: "Apple 사과", want: "apple 사과"},
		{name: "digits kept", in: "사과 3개", want: "사과 3개"},
		{name: "jamo consonants kept", in: "ㅋㅋ 좋아", want: "ㅋㅋ 좋아"},
		{name: "aggressive drops latin", aggressive: true, in: "Apple 사과, 3개!", want: "사과 개"},
		{name: "aggressive keeps jamo", aggressive: true, in: "ㅎㅎ 네", want: "ㅎㅎ 네"},
		{name: "decomposed jamo composed", in: "\u1100\u1161\u11A8", want: "각"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var opts []normalize.Option
			if tt.aggressive {
				opts = append(opts, normalize.WithAggressive())
			}
			n := normalize.New(opts...)
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"  사과는   빨간색이에요!! ",
		"Apple IS red, 정말?",
		"음... 어어 그게 뭐였지",
		"ㅋㅋㅋ   LOL",
		"\u1100!\u1161",
		"\u1112\u1161?\u11ab \u1100\u1173\u11af",
		"",
	}
	for _, n := range []*normalize.Normalizer{normalize.New(), normalize.New(normalize.WithAggressive())} {
		for _, in := range inputs {
			once := n.Normalize(in)
			if twice := n.Normalize(once); twice != once {
				t.Errorf("aggressive=%v: Normalize(Normalize(%q)) = %q, want %q", n.Aggressive(), in, twice, once)
			}
			ph := n.Phonetic(in)
			if again := n.Phonetic(ph); again != ph {
				t.Errorf("aggressive=%v: Phonetic not idempotent for %q: %q then %q", n.Aggressive(), in, ph, again)
			}
			rf := n.RemoveFillers(in)
			if again := n.RemoveFillers(rf); again != rf {
				t.Errorf("aggressive=%v: RemoveFillers not idempotent for %q: %q then %q", n.Aggressive(), in, rf, again)
			}
		}
	}
}

func TestNormalize_ComposesJamoAfterFiltering(t *testing.T) {
	t.Parallel()

	if got := normalize.New().Normalize("\u1100!\u1161"); got != "가" {
		t.Errorf("Normalize(ᄀ!ᅡ) = %q (%U), want %q", got, []rune(got), "가")
	}
}

func TestPhonetic(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	tests := []struct {
		in   string
		want string
	}{
		{in: "개", want: "개"},
		{in: "애기", want: "에기"},
		{in: "얘기", want: "예기"},
		{in: "왜요", want: "웨요"},
		{in: "외국", want: "웨국"},
		{in: "  왜  애 ", want: "웨 에"},
	}
	for _, tt := range tests {
		if got := n.Phonetic(tt.in); got != tt.want {
			t.Errorf("Phonetic(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemoveFillers(t *testing.T) {
	t.Parallel()

	n := normalize.New()
	tests := []struct {
		in   string
		want string
	}{
		{in: "음 사과는 빨간색", want: "사과는 빨간색"},
		{in: "어어 그 저 뭐뭐 사과", want: "사과"},
		{in: "그것은 사과", want: "그것은 사과"},
		{in: "저녁 먹었어", want: "저녁 먹었어"},
		{in: "음음음", want: ""},
		{in: "음어", want: "음어"},
	}
	for _, tt := range tests {
		if got := n.RemoveFillers(tt.in); got != tt.want {
			t.Errorf("RemoveFillers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRepeatedChars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "사과과과과", max: 2, want: "사과과"},
		{in: "ㅋㅋㅋㅋㅋ", max: 3, want: "ㅋㅋㅋ"},
		{in: "aaabbb", max: 1, want: "ab"},
		{in: "aaa", max: 0, want: "a"},
		{in: "", max: 2, want: ""},
		{in: "abc", max: 2, want: "abc"},
	}
	for _, tt := range tests {
		if got := normalize.RepeatedChars(tt.in, tt.max); got != tt.want {
			t.Errorf("RepeatedChars(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestContainsHangul(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{in: "사과", want: true},
		{in: "apple", want: false},
		{in: "ㅋ", want: true},
		{in: "", want: false},
		{in: "a가", want: true},
	}
	for _, tt := range tests {
		if got := normalize.ContainsHangul(tt.in); got != tt.want {
			t.Errorf("ContainsHangul(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
