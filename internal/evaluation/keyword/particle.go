package keyword

import (
	"slices"
	"strings"
)

// particles are the common Korean postpositions appended to nouns.
var particles = []string{"은", "는", "이", "가", "을", "를", "와", "과", "의", "에", "에서"}

// stripOrder tries "에서" before "에" so the longer particle wins.
var stripOrder = []string{"에서", "은", "는", "이", "가", "을", "를", "와", "과", "의", "에"}

// Particles returns the postpositions used by [Variations].
func Particles() []string {
	return slices.Clone(particles)
}

// Variations returns keyword followed by keyword with each particle appended.
func Variations(keyword string) []string {
	out := make([]string, 0, len(particles)+1)
	out = append(out, keyword)
	for _, p := range particles {
		out = append(out, keyword+p)
	}
	return out
}

// ParticleStripper extracts keywords like [Basic] and then removes one
// trailing particle from each token, provided the remaining stem still
// satisfies the minimum length. Tokens that cannot be reduced are kept as is.
type ParticleStripper struct {
	basic *Basic
}

// NewParticleStripper returns a [ParticleStripper]. A minLength below 1
// selects [DefaultMinLength].
func NewParticleStripper(minLength int) *ParticleStripper {
	return &ParticleStripper{basic: NewBasic(minLength)}
}

// Extract implements [Extractor].
func (p *ParticleStripper) Extract(text string) []string {
	tokens := p.basic.Extract(text)
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		stem := p.strip(tok)
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		out = append(out, stem)
	}
	return out
}

// Fingerprint implements [Fingerprinter].
func (p *ParticleStripper) Fingerprint() string {
	return "particle/" + strings.TrimPrefix(p.basic.Fingerprint(), "basic/")
}

func (p *ParticleStripper) strip(tok string) string {
	for _, particle := range stripOrder {
		stem, ok := strings.CutSuffix(tok, particle)
		if !ok {
			continue
		}
		if isKeyword(stem, p.basic.MinLength) {
			return stem
		}
	}
	return tok
}
