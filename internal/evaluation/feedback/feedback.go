// Package feedback turns scores into a short message for the learner.
//
// Rules are evaluated top to bottom and the first match wins. Correct
// answers get praise qualified by their weakest aspect; incorrect answers get
// a hint aimed at the weakest axis when it is clearly deficient.
package feedback

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/speakeval/internal/evaluation/keyword"
	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

// Messages shown to learners.
const (
	MsgPerfect         = "정답입니다! 완벽해요! 👍"
	MsgCorrectPhonetic = "정답입니다! 하지만 발음을 좀 더 정확하게 해보세요."
	MsgCorrectKeywords = "정답입니다! 하지만 '%s' 단어를 넣으면 더 좋아요."
	MsgCorrectSemantic = "정답입니다! 하지만 좀 더 정확하게 말해보세요."
	MsgCorrect         = "정답입니다! 잘했어요!"
	MsgThinkAgain      = "다시 한번 생각해보세요."
	MsgMissingKeywords = "조금 아쉬워요. '%s' 단어를 넣어보세요."
	MsgAddKeywords     = "중요한 단어를 더 넣어보세요."
	MsgPronunciation   = "의미는 맞지만, 발음을 좀 더 정확하게 해보세요."
	MsgPrecision       = "조금 더 정확하게 말해보세요."
	MsgAlmost          = "아쉬워요! 조금만 더 노력하면 정답이에요."
	MsgConsiderMore    = "좀 더 생각해보세요."
	MsgTryAgain        = "다시 한번 시도해보세요."
	MsgNoSpeech        = "음성이 감지되지 않았습니다. 다시 시도해주세요."
	MsgRecognitionSlow = "음성 인식에 시간이 너무 오래 걸렸습니다. 다시 시도해주세요."
)

// Rule thresholds.
const (
	perfectMin          = 0.9
	correctPhoneticMin  = 0.85
	correctKeywordMin   = 0.9
	correctSemanticMin  = 0.85
	hopelessBelow       = 0.3
	deficientBelow      = 0.5
	almostMin           = 0.6
	considerMin         = 0.5
	maxMissing          = 3
	maxNamed            = 2
	maxAnalysisKeywords = 10
)

// Generator selects feedback messages. It is stateless; the zero value is
// ready to use.
type Generator struct{}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// Generate returns the feedback message for an evaluation.
func (g *Generator) Generate(scores scoring.Scores, correct bool, transcriptKeywords, answerKeywords []string) string {
	if correct {
		return positive(scores, transcriptKeywords, answerKeywords)
	}
	return improvement(scores, transcriptKeywords, answerKeywords)
}

func positive(s scoring.Scores, transcriptKeywords, answerKeywords []string) string {
	if s.Semantic >= perfectMin && s.Keyword >= perfectMin && s.Phonetic >= perfectMin {
		return MsgPerfect
	}
	if s.Phonetic < correctPhoneticMin {
		return MsgCorrectPhonetic
	}
	if s.Keyword < correctKeywordMin {
		if missing := MissingKeywords(transcriptKeywords, answerKeywords); len(missing) > 0 {
			return fmt.Sprintf(MsgCorrectKeywords, quoteList(missing))
		}
	}
	if s.Semantic < correctSemanticMin {
		return MsgCorrectSemantic
	}
	return MsgCorrect
}

func improvement(s scoring.Scores, transcriptKeywords, answerKeywords []string) string {
	if s.Weighted < hopelessBelow {
		return MsgThinkAgain
	}
	switch weakest := s.Weakest(); {
	case weakest == scoring.AxisKeyword && s.Keyword < deficientBelow:
		if missing := MissingKeywords(transcriptKeywords, answerKeywords); len(missing) > 0 {
			return fmt.Sprintf(MsgMissingKeywords, quoteList(missing))
		}
		return MsgAddKeywords
	case weakest == scoring.AxisPhonetic && s.Phonetic < deficientBelow:
		return MsgPronunciation
	case weakest == scoring.AxisSemantic && s.Semantic < deficientBelow:
		return MsgPrecision
	}
	switch {
	case s.Weighted >= almostMin:
		return MsgAlmost
	case s.Weighted >= considerMin:
		return MsgConsiderMore
	default:
		return MsgTryAgain
	}
}

// quoteList joins at most maxNamed keywords as a', 'b so the message
// template's surrounding quotes complete the list.
func quoteList(words []string) string {
	if len(words) > maxNamed {
		words = words[:maxNamed]
	}
	return strings.Join(words, "', '")
}

// MissingKeywords returns up to three answer keywords absent from the
// transcript, keeping only Hangul words of at least two characters. This
// drops synonym variants written in Latin script.
func MissingKeywords(transcriptKeywords, answerKeywords []string) []string {
	var out []string
	for _, k := range keyword.Missing(transcriptKeywords, answerKeywords) {
		if !displayable(k) {
			continue
		}
		out = append(out, k)
		if len(out) == maxMissing {
			break
		}
	}
	return out
}

func displayable(k string) bool {
	if utf8.RuneCountInString(k) < 2 {
		return false
	}
	for _, r := range k {
		if !normalize.IsHangulSyllable(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Analysis is the diagnostic companion of a feedback message.
type Analysis struct {
	TranscriptKeywords []string     `json:"stt_keywords"`
	AnswerKeywords     []string     `json:"answer_keywords"`
	MissingKeywords    []string     `json:"missing_keywords"`
	WeakestDimension   scoring.Axis `json:"weakest_dimension"`
}

// Detailed is a feedback message together with the data it was derived from.
type Detailed struct {
	Feedback  string         `json:"feedback"`
	IsCorrect bool           `json:"is_correct"`
	Scores    scoring.Scores `json:"scores"`
	Analysis  Analysis       `json:"analysis"`
	Texts     Texts          `json:"texts"`
}

// Texts are the compared transcript and answer.
type Texts struct {
	Transcript string `json:"stt"`
	Answer     string `json:"answer"`
}

// Detailed returns the feedback message plus its analysis.
func (g *Generator) Detailed(scores scoring.Scores, correct bool, transcriptKeywords, answerKeywords []string, transcript, answer string) Detailed {
	return Detailed{
		Feedback:  g.Generate(scores, correct, transcriptKeywords, answerKeywords),
		IsCorrect: correct,
		Scores:    scores,
		Analysis: Analysis{
			TranscriptKeywords: transcriptKeywords,
			AnswerKeywords:     Cap(answerKeywords, maxAnalysisKeywords),
			MissingKeywords:    MissingKeywords(transcriptKeywords, answerKeywords),
			WeakestDimension:   scores.Weakest(),
		},
		Texts: Texts{Transcript: transcript, Answer: answer},
	}
}

// Cap returns at most n leading elements of s.
func Cap(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
