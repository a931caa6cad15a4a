package keyword

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
)

// defaultSynonyms maps a canonical keyword to the surface forms a learner may
// use in its place. It is never mutated; [DefaultSynonyms] hands out copies.
var defaultSynonyms = map[string][]string{
	// fruit
	"사과":  {"애플", "apple"},
	"바나나": {"banana"},
	"포도":  {"grape"},
	"딸기":  {"strawberry"},
	"수박":  {"watermelon"},

	// colours
	"빨간색": {"빨강", "레드", "red", "빨강색", "빨간"},
	"파란색": {"파랑", "블루", "blue", "파랑색", "파란"},
	"노란색": {"노랑", "옐로우", "yellow", "노랑색", "노란"},
	"초록색": {"초록", "그린", "green", "초록빛", "녹색"},
	"검은색": {"검정", "블랙", "black", "검정색", "검은"},
	"하얀색": {"하양", "화이트", "white", "하양색", "하얀", "흰색"},

	// school
	"학교":  {"학원", "교실"},
	"선생님": {"교사", "teacher", "스승"},
	"학생":  {"student", "제자"},

	// everyday nouns
	"집":  {"home", "house", "가정"},
	"가족": {"family"},
	"친구": {"friend", "동무"},

	// verbs, dictionary form
	"먹다": {"먹는다", "먹어", "먹었다"},
	"가다": {"간다", "가", "갔다"},
}

// DefaultSynonyms returns a deep copy of the built-in synonym table.
func DefaultSynonyms() map[string][]string {
	out := make(map[string][]string, len(defaultSynonyms))
	for k, v := range defaultSynonyms {
		out[k] = slices.Clone(v)
	}
	return out
}

// Expander expands keywords against an immutable synonym table.
type Expander struct {
	table       map[string][]string
	fingerprint string
}

// NewExpander returns an [Expander] over the built-in table merged with
// custom. Entries in custom replace built-in entries with the same key.
func NewExpander(custom map[string][]string) *Expander {
	table := DefaultSynonyms()
	for k, v := range custom {
		table[k] = slices.Clone(v)
	}
	return &Expander{table: table, fingerprint: tableDigest(table)}
}

// Fingerprint returns a short digest of the synonym table. Expanders with
// the same table share a fingerprint.
func (e *Expander) Fingerprint() string {
	return e.fingerprint
}

func tableDigest(table map[string][]string) string {
	h := sha256.New()
	for _, k := range slices.Sorted(maps.Keys(table)) {
		h.Write([]byte(k))
		for _, v := range table[k] {
			h.Write([]byte{0})
			h.Write([]byte(v))
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Expand returns the set of keywords plus every registered variant of each
// keyword, as a sorted slice. The input keywords are always retained.
func (e *Expander) Expand(keywords []string) []string {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
		for _, v := range e.table[k] {
			set[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Synonyms returns the variants registered for keyword, or nil.
func (e *Expander) Synonyms(keyword string) []string {
	return slices.Clone(e.table[keyword])
}

// Expand expands keywords against the built-in table merged with custom.
func Expand(keywords []string, custom map[string][]string) []string {
	return NewExpander(custom).Expand(keywords)
}
