package feedback_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/speakeval/internal/evaluation/feedback"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

func sc(sem, kw, ph, weighted float64) scoring.Scores {
	return scoring.Scores{Semantic: sem, Keyword: kw, Phonetic: ph, Weighted: weighted}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	answer := []string{"사과는", "빨간색이에요", "red"}

	tests := []struct {
		name       string
		scores     scoring.Scores
		correct    bool
		transcript []string
		want       string
	}{
		{
			name: "perfect", correct: true,
			scores: sc(0.95, 1, 0.92, 0.96), transcript: answer,
			want: feedback.MsgPerfect,
		},
		{
			name: "correct but pronunciation", correct: true,
			scores: sc(0.95, 1, 0.8, 0.935), transcript: answer,
			want: feedback.MsgCorrectPhonetic,
		},
		{
			name: "correct but missing keyword named", correct: true,
			scores: sc(0.95, 0.5, 0.93, 0.811), transcript: []string{"빨간색이에요"},
			want: "정답입니다! 하지만 '사과는' 단어를 넣으면 더 좋아요.",
		},
		{
			name: "correct, low keyword but only latin missing", correct: true,
			scores: sc(0.95, 0.67, 0.93, 0.86), transcript: []string{"사과는", "빨간색이에요"},
			want: feedback.MsgCorrect,
		},
		{
			name: "correct but semantic", correct: true,
			scores: sc(0.8, 1, 0.95, 0.89), transcript: answer,
			want: feedback.MsgCorrectSemantic,
		},
		{
			name: "correct generic", correct: true,
			scores: sc(0.87, 1, 0.88, 0.911), transcript: answer,
			want: feedback.MsgCorrect,
		},
		{
			name: "hopeless", correct: false,
			scores: sc(0.1, 0, 0.5, 0.15),
			want: feedback.MsgThinkAgain,
		},
		{
			name: "keyword weakest names words", correct: false,
			scores: sc(0.6, 0.3, 0.7, 0.53), transcript: []string{"red"},
			want: "조금 아쉬워요. '빨간색이에요', '사과는' 단어를 넣어보세요.",
		},
		{
			name: "keyword weakest none identifiable", correct: false,
			scores: sc(0.6, 0.3, 0.7, 0.53), transcript: []string{"사과는", "빨간색이에요"},
			want: feedback.MsgAddKeywords,
		},
		{
			name: "phonetic weakest", correct: false,
			scores: sc(0.7, 0.6, 0.4, 0.61),
			want: feedback.MsgPronunciation,
		},
		{
			name: "semantic weakest", correct: false,
			scores: sc(0.4, 0.6, 0.7, 0.52),
			want: feedback.MsgPrecision,
		},
		{
			name: "almost", correct: false,
			scores: sc(0.55, 0.6, 0.7, 0.6),
			want: feedback.MsgAlmost,
		},
		{
			name: "consider more", correct: false,
			scores: sc(0.55, 0.5, 0.5, 0.53),
			want: feedback.MsgConsiderMore,
		},
		{
			name: "try again", correct: false,
			scores: sc(0.5, 0.5, 0.55, 0.4),
			want: feedback.MsgTryAgain,
		},
		{
			name: "tie goes to semantic", correct: false,
			scores: sc(0.45, 0.45, 0.45, 0.45),
			want: feedback.MsgPrecision,
		},
	}

	g := feedback.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := g.Generate(tt.scores, tt.correct, tt.transcript, answer); got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissingKeywords(t *testing.T) {
	t.Parallel()

	answer := []string{"빨간색", "빨강", "레드", "red", "빨간", "빨강색", "집", "가정"}
	got := feedback.MissingKeywords(nil, answer)
	// Sorted, Hangul only, at least two runes, capped at three.
	want := []string{"가정", "레드", "빨간"}
	if !slices.Equal(got, want) {
		t.Errorf("MissingKeywords = %q, want %q", got, want)
	}

	if got := feedback.MissingKeywords(answer, answer); len(got) != 0 {
		t.Errorf("MissingKeywords with nothing missing = %q, want empty", got)
	}
}

func TestDetailed(t *testing.T) {
	t.Parallel()

	answer := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10", "a11", "사과"}
	d := feedback.New().Detailed(sc(0.2, 0.1, 0.6, 0.25), false, nil, answer, "", "사과")

	if d.Feedback != feedback.MsgThinkAgain {
		t.Errorf("Feedback = %q, want %q", d.Feedback, feedback.MsgThinkAgain)
	}
	if len(d.Analysis.AnswerKeywords) != 10 {
		t.Errorf("len(AnswerKeywords) = %d, want 10", len(d.Analysis.AnswerKeywords))
	}
	if d.Analysis.WeakestDimension != scoring.AxisKeyword {
		t.Errorf("WeakestDimension = %q, want %q", d.Analysis.WeakestDimension, scoring.AxisKeyword)
	}
	if !slices.Equal(d.Analysis.MissingKeywords, []string{"사과"}) {
		t.Errorf("MissingKeywords = %q, want [사과]", d.Analysis.MissingKeywords)
	}
	if d.Texts.Answer != "사과" {
		t.Errorf("Texts.Answer = %q, want %q", d.Texts.Answer, "사과")
	}
}
