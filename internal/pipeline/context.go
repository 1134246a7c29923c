// Package pipeline implements the detector orchestration core: the
// per-request evaluation context and the ordered pipeline that runs
// detectors until the first block.
package pipeline

import (
	"strings"
	"time"
)

// Precomputed is the immutable per-request derived context shared by
// reference across every detector invocation.
type Precomputed struct {
	FullTextLower string
	Strings       []string
	URLsLower     []string
}

// BuildPrecomputed lower-cases the user message and chat-history content,
// then recursively collects every string leaf of inputValues.
func BuildPrecomputed(userMessage string, chatHistoryContents []string, inputValues map[string]interface{}) *Precomputed {
	var full strings.Builder
	if userMessage != "" {
		full.WriteString(userMessage)
		full.WriteByte(' ')
	}
	for _, content := range chatHistoryContents {
		full.WriteString(content)
		full.WriteByte(' ')
	}
	fullTextLower := strings.ToLower(full.String())

	var strs, urls []string
	for _, v := range inputValues {
		collectLeaves(v, &strs, &urls)
	}

	return &Precomputed{
		FullTextLower: fullTextLower,
		Strings:       strs,
		URLsLower:     urls,
	}
}

func collectLeaves(v interface{}, strs, urls *[]string) {
	switch val := v.(type) {
	case string:
		lower := strings.ToLower(val)
		*strs = append(*strs, lower)
		if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "mailto:") {
			*urls = append(*urls, lower)
		}
	case []interface{}:
		for _, item := range val {
			collectLeaves(item, strs, urls)
		}
	case map[string]interface{}:
		for _, item := range val {
			collectLeaves(item, strs, urls)
		}
	}
}

// Deadline tracks the pipeline's total compute budget for one request.
type Deadline struct {
	start  time.Time
	budget time.Duration
}

// NewDeadline constructs a Deadline with the given millisecond budget,
// starting the clock immediately.
func NewDeadline(budgetMs int64) Deadline {
	return Deadline{start: time.Now(), budget: time.Duration(budgetMs) * time.Millisecond}
}

// Exceeded reports whether the budget has already been spent.
func (d Deadline) Exceeded() bool {
	return time.Since(d.start) >= d.budget
}

// RemainingMs returns the remaining budget in milliseconds, floored at zero.
func (d Deadline) RemainingMs() int64 {
	remaining := d.budget - time.Since(d.start)
	if remaining < 0 {
		return 0
	}
	return remaining.Milliseconds()
}

// EvalContext is handed to every detector for one request.
type EvalContext struct {
	Pre          *Precomputed
	Deadline     Deadline
	PluginWarnMs int64
}

// NewEvalContext builds the per-request evaluation context.
func NewEvalContext(userMessage string, chatHistoryContents []string, inputValues map[string]interface{}, budgetMs, warnMs int64) *EvalContext {
	return &EvalContext{
		Pre:          BuildPrecomputed(userMessage, chatHistoryContents, inputValues),
		Deadline:     NewDeadline(budgetMs),
		PluginWarnMs: warnMs,
	}
}
