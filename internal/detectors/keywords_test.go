package detectors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeywordMatcherMatchesCaseInsensitively(t *testing.T) {
	m := matcherFor([]string{"secret project"})
	require.True(t, m.MatchString("this is a SECRET PROJECT update"))
	require.False(t, m.MatchString("nothing relevant"))
}

func TestKeywordMatcherQuotesRegexMetacharacters(t *testing.T) {
	m := matcherFor([]string{"a.b+c"})
	require.True(t, m.MatchString("contains a.b+c literally"))
	require.False(t, m.MatchString("contains aXbYc which should not match"))
}

func TestMatcherForCachesByKeywordList(t *testing.T) {
	a := matcherFor([]string{"one", "two"})
	b := matcherFor([]string{"one", "two"})
	require.Same(t, a, b)
}

func TestMatcherForDistinguishesDifferentLists(t *testing.T) {
	a := matcherFor([]string{"alpha"})
	b := matcherFor([]string{"beta"})
	require.NotSame(t, a, b)
}
