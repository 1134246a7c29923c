package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildPrecomputedConcatenatesUserMessageAndChatHistory(t *testing.T) {
	pre := BuildPrecomputed("Hello WORLD", []string{"Reply One", "Reply Two"}, nil)
	require.Equal(t, "hello world reply one reply two ", pre.FullTextLower)
}

func TestBuildPrecomputedCollectsStringLeavesRecursively(t *testing.T) {
	input := map[string]interface{}{
		"to":  "Alice@Example.com",
		"tags": []interface{}{"A", map[string]interface{}{"nested": "B"}},
		"num": float64(42),
	}
	pre := BuildPrecomputed("", nil, input)
	require.ElementsMatch(t, []string{"alice@example.com", "a", "b"}, pre.Strings)
}

func TestBuildPrecomputedExtractsURLs(t *testing.T) {
	input := map[string]interface{}{
		"link": "Visit HTTP://Evil.com/attack",
		"note": "no link here",
		"mail": "mailto:bob@example.com",
	}
	pre := BuildPrecomputed("", nil, input)
	require.Contains(t, pre.URLsLower, "visit http://evil.com/attack")
	require.Contains(t, pre.URLsLower, "mailto:bob@example.com")
	require.NotContains(t, pre.URLsLower, "no link here")
}

func TestDeadlineExceeded(t *testing.T) {
	d := NewDeadline(10)
	require.False(t, d.Exceeded())
	time.Sleep(15 * time.Millisecond)
	require.True(t, d.Exceeded())
	require.Equal(t, int64(0), d.RemainingMs())
}
