package pipeline

import (
	"context"
	"time"

	"github.com/crlsmrls/sentra-gateway/internal/logging"
	"github.com/crlsmrls/sentra-gateway/internal/model"
)

// Timing records one detector's elapsed time within a single pipeline run.
type Timing struct {
	Plugin string
	Ms     int64
}

// Detector is one pluggable unit that produces an optional block verdict.
// Returning nil means the detector has no opinion and evaluation continues.
type Detector interface {
	Name() string
	Eval(ctx context.Context, req *model.AnalyzeRequest, evalCtx *EvalContext) *model.AnalyzeResponse
}

// Pipeline runs its detectors in configured order, stopping at the first
// block. Detector instances are immutable after construction and safe for
// concurrent use across requests.
type Pipeline struct {
	detectors []Detector
}

// New builds a pipeline from an ordered, already-resolved detector list.
func New(detectors []Detector) *Pipeline {
	return &Pipeline{detectors: detectors}
}

// Len returns the number of registered detectors.
func (p *Pipeline) Len() int {
	return len(p.detectors)
}

// Evaluate runs detectors in order and returns the raw verdict together with
// per-detector timings in invocation order.
func (p *Pipeline) Evaluate(ctx context.Context, req *model.AnalyzeRequest, evalCtx *EvalContext) (model.AnalyzeResponse, []Timing) {
	log := logging.FromContext(ctx)
	timings := make([]Timing, 0, len(p.detectors))

	for _, d := range p.detectors {
		name := d.Name()
		if evalCtx.Deadline.Exceeded() {
			log.Warn().Int("plugin_count", len(p.detectors)).Msg("deadline exceeded, aborting further plugin checks")
			break
		}

		start := time.Now()
		resp := d.Eval(ctx, req, evalCtx)
		elapsedMs := time.Since(start).Milliseconds()
		timings = append(timings, Timing{Plugin: name, Ms: elapsedMs})

		if elapsedMs > evalCtx.PluginWarnMs {
			log.Warn().
				Str("plugin", name).
				Int64("elapsed_ms", elapsedMs).
				Int64("warn_ms", evalCtx.PluginWarnMs).
				Msg("plugin exceeded warn threshold")
		}

		if resp != nil && resp.BlockAction {
			if resp.BlockedBy == "" {
				resp.BlockedBy = name
			}
			log.Info().Str("plugin", name).Interface("reason_code", resp.ReasonCode).Msg("blocking")
			return *resp, timings
		}
	}

	return model.Allow(), timings
}
