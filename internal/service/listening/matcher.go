package listening

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keywordMatcher finds which of a fixed keyword set occur as case-insensitive
// substrings of a text in a single pass.
type keywordMatcher struct {
	keywords []string
	// ahocorasick.Matcher mutates internal counters during Match.
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func newKeywordMatcher(keywords []string) *keywordMatcher {
	m := &keywordMatcher{}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		m.keywords = append(m.keywords, kw)
	}
	if len(m.keywords) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.keywords)
	}
	return m
}

// size is the number of distinct keywords
func (m *keywordMatcher) size() int {
	return len(m.keywords)
}

// countMatches returns how many distinct keywords occur in text
func (m *keywordMatcher) countMatches(text string) int {
	if m.matcher == nil {
		return 0
	}

	m.mu.Lock()
	hits := m.matcher.Match([]byte(strings.ToLower(text)))
	m.mu.Unlock()

	unique := make(map[int]struct{}, len(hits))
	for _, idx := range hits {
		if idx >= 0 && idx < len(m.keywords) {
			unique[idx] = struct{}{}
		}
	}
	return len(unique)
}

// containsAny reports whether any keyword occurs in text
func (m *keywordMatcher) containsAny(text string) bool {
	return m.countMatches(text) > 0
}
