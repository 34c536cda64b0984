package budgets

import "strings"

// Categorizer decides whether a ledger entry description belongs to a
// spending category. Matching free text to categories is inherently
// heuristic, so the strategy is pluggable; the transaction core never
// depends on it.
type Categorizer interface {
	Matches(description, category string) bool
}

// KeywordMatcher is the default strategy: the category name itself is a
// substring match, plus a synonym keyword set per well-known category.
type KeywordMatcher struct {
	keywords map[string][]string
}

func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{
		keywords: map[string][]string{
			"food":           {"restaurant", "grocery", "food"},
			"transportation": {"gas", "uber", "taxi"},
			"entertainment":  {"movie", "concert", "game"},
		},
	}
}

func (m *KeywordMatcher) Matches(description, category string) bool {
	if description == "" {
		return false
	}
	desc := strings.ToLower(description)
	cat := strings.ToLower(category)
	if strings.Contains(desc, cat) {
		return true
	}
	for _, kw := range m.keywords[cat] {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}
