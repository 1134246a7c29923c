package detectors

import (
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// keywordMatcher is a case-insensitive multi-literal matcher compiled from a
// configured keyword list, standing in for the original's Aho-Corasick
// automaton: no pack repository ships a multi-pattern string-matching
// library, so this reimplements the needed subset on regexp alternation.
type keywordMatcher struct {
	re *regexp.Regexp
}

func (m *keywordMatcher) MatchString(s string) bool {
	return m.re.MatchString(s)
}

var matcherCache sync.Map // map[uint64]*keywordMatcher

// matcherFor returns a process-wide shared matcher for the given keyword
// list, building and caching it on first use. The cache key is a stable
// hash of the ordered pattern list; entries are never evicted, matching the
// original's process-lifetime Aho-Corasick cache semantics.
func matcherFor(keywords []string) *keywordMatcher {
	key := hashKeywords(keywords)
	if existing, ok := matcherCache.Load(key); ok {
		return existing.(*keywordMatcher)
	}
	m := buildMatcher(keywords)
	actual, _ := matcherCache.LoadOrStore(key, m)
	return actual.(*keywordMatcher)
}

func hashKeywords(keywords []string) uint64 {
	h := fnv.New64a()
	for _, k := range keywords {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func buildMatcher(keywords []string) *keywordMatcher {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		parts = append(parts, regexp.QuoteMeta(k))
	}
	pattern := "(?i)(" + strings.Join(parts, "|") + ")"
	return &keywordMatcher{re: regexp.MustCompile(pattern)}
}
