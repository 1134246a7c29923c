package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	name  string
	resp  *model.AnalyzeResponse
	sleep time.Duration
}

func (f fakeDetector) Name() string { return f.name }

func (f fakeDetector) Eval(_ context.Context, _ *model.AnalyzeRequest, _ *EvalContext) *model.AnalyzeResponse {
	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	return f.resp
}

func newCtx(budgetMs, warnMs int64) *EvalContext {
	return NewEvalContext("hello", nil, nil, budgetMs, warnMs)
}

func TestPipelineAllowsWhenNoDetectorBlocks(t *testing.T) {
	p := New([]Detector{
		fakeDetector{name: "a", resp: nil},
		fakeDetector{name: "b", resp: nil},
	})
	resp, timings := p.Evaluate(context.Background(), &model.AnalyzeRequest{}, newCtx(900, 120))
	require.False(t, resp.BlockAction)
	require.Len(t, timings, 2)
	require.Equal(t, "a", timings[0].Plugin)
	require.Equal(t, "b", timings[1].Plugin)
}

func TestPipelineShortCircuitsOnFirstBlock(t *testing.T) {
	block := &model.AnalyzeResponse{BlockAction: true, ReasonCode: model.IntPtr(111)}
	p := New([]Detector{
		fakeDetector{name: "a", resp: nil},
		fakeDetector{name: "b", resp: block},
		fakeDetector{name: "c", resp: &model.AnalyzeResponse{BlockAction: true}},
	})
	resp, timings := p.Evaluate(context.Background(), &model.AnalyzeRequest{}, newCtx(900, 120))
	require.True(t, resp.BlockAction)
	require.Equal(t, "b", resp.BlockedBy)
	require.Len(t, timings, 2)
}

func TestPipelineFillsBlockedByFromDetectorName(t *testing.T) {
	block := &model.AnalyzeResponse{BlockAction: true}
	p := New([]Detector{fakeDetector{name: "custom", resp: block}})
	resp, _ := p.Evaluate(context.Background(), &model.AnalyzeRequest{}, newCtx(900, 120))
	require.Equal(t, "custom", resp.BlockedBy)
}

func TestPipelineStopsWhenDeadlineExceeded(t *testing.T) {
	p := New([]Detector{
		fakeDetector{name: "slow", resp: nil, sleep: 20 * time.Millisecond},
		fakeDetector{name: "never-runs", resp: &model.AnalyzeResponse{BlockAction: true}},
	})
	resp, timings := p.Evaluate(context.Background(), &model.AnalyzeRequest{}, newCtx(10, 120))
	require.False(t, resp.BlockAction)
	require.Len(t, timings, 1)
	require.Equal(t, "slow", timings[0].Plugin)
}
