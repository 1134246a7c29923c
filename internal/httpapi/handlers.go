package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
	"github.com/crlsmrls/sentra-gateway/internal/telemetry"
)

// handleValidate implements the liveness + auth probe: version and bearer
// checks only, no body.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !requireAPIVersion(w, r) {
		return
	}
	if !requireBearerAuth(w, r, s.allowedTokens) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"isSuccessful": true, "status": "OK"})
}

// handleHealthz implements the unauthenticated container-readiness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"pluginCount": s.pipeline.Len(),
		"budgetMs":    s.cfg.PluginBudgetMs,
	})
}

// handleAnalyze implements the full request handler protocol of §4.10: body
// size guard, api-version check, bearer auth, JSON decode, field
// validation, pipeline evaluation, audit-only override, telemetry and
// metrics.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.checkContentLength(w, r) {
		return
	}
	if !requireAPIVersion(w, r) {
		return
	}
	if !requireBearerAuth(w, r, s.allowedTokens) {
		return
	}

	req, ok := s.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	if missing := req.MissingRequiredFields(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, ErrCodeMissingFields,
			"missing required field(s): "+strings.Join(missing, ", "), nil)
		return
	}

	// Telemetry records the caller-supplied x-ms-correlation-id verbatim (or
	// "" if absent), distinct from CorrelationIDFromContext's generated id
	// used for internal request tracing and the echoed response header.
	correlationID := r.Header.Get("x-ms-correlation-id")

	var chatContents []string
	for _, raw := range req.PlannerContext.ChatHistory {
		var item model.ChatItem
		if err := json.Unmarshal(raw, &item); err == nil && item.Content != "" {
			chatContents = append(chatContents, item.Content)
		}
	}

	evalCtx := pipeline.NewEvalContext(req.PlannerContext.UserMessage, chatContents, req.InputValues,
		s.cfg.PluginBudgetMs, s.cfg.PluginWarnMs)

	start := time.Now()
	rawResp, timings := s.pipeline.Evaluate(r.Context(), req, evalCtx)
	latencyMs := float64(time.Since(start).Milliseconds())

	auditSuppressed := s.cfg.AuditOnly && rawResp.BlockAction
	outward := rawResp
	if auditSuppressed {
		outward = model.Allow()
	}

	s.recordMetrics(rawResp, timings, latencyMs, auditSuppressed)
	s.emitTelemetry(r.Context(), req, rawResp, timings, latencyMs, auditSuppressed, correlationID)

	writeJSON(w, http.StatusOK, outward)
}

func (s *Server) checkContentLength(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.MaxRequestBytes <= 0 {
		return true
	}
	if r.ContentLength > s.cfg.MaxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge,
			"request body exceeds configured size limit", nil)
		return false
	}
	return true
}

func (s *Server) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (*model.AnalyzeRequest, bool) {
	body := r.Body
	if s.cfg.MaxRequestBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	}

	var req model.AnalyzeRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge,
				"request body exceeded the streaming size limit", nil)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, ErrCodeMalformedJSON, "malformed JSON body: "+err.Error(), nil)
		return nil, false
	}
	return &req, true
}

func (s *Server) recordMetrics(rawResp model.AnalyzeResponse, timings []pipeline.Timing, latencyMs float64, auditSuppressed bool) {
	s.metrics.ObserveRequest(latencyMs, rawResp.BlockAction, auditSuppressed)
	for _, t := range timings {
		blocked := rawResp.BlockAction && t.Plugin == rawResp.BlockedBy
		s.metrics.ObservePlugin(t.Plugin, float64(t.Ms), blocked)
	}
	s.metrics.SetLogFileSize(float64(s.sink.LogFileSizeBytes()))
}

func (s *Server) emitTelemetry(ctx context.Context, req *model.AnalyzeRequest, rawResp model.AnalyzeResponse, timings []pipeline.Timing, latencyMs float64, auditSuppressed bool, correlationID string) {
	pluginTimings := make([]map[string]interface{}, 0, len(timings))
	for _, t := range timings {
		pluginTimings = append(pluginTimings, map[string]interface{}{"plugin": t.Plugin, "ms": t.Ms})
	}

	event := map[string]interface{}{
		"schemaVersion": 1,
		"ts":            time.Now().UTC().Format(time.RFC3339),
		"correlationId": correlationID,
		"blockAction":   rawResp.BlockAction,
		"reasonCode":    rawResp.ReasonCode,
		"blockedBy":     rawResp.BlockedBy,
		"latencyMs":     latencyMs,
		"diagnostics":   rawResp.Diagnostics,
		"pluginTimings": pluginTimings,
	}
	if auditSuppressed {
		event["auditSuppressed"] = true
	}

	s.sink.EmitEvent(ctx, event, telemetry.EventFields{
		BlockAction:     rawResp.BlockAction,
		ReasonCode:      rawResp.ReasonCode,
		BlockedBy:       rawResp.BlockedBy,
		LatencyMs:       int64(latencyMs),
		AuditSuppressed: auditSuppressed,
		PluginCount:     len(timings),
	})

	if !auditSuppressed {
		return
	}

	audit := map[string]interface{}{
		"schemaVersion": 1,
		"ts":            time.Now().UTC().Format(time.RFC3339),
		"correlationId": correlationID,
		"auditOnly":     true,
		"wouldBlock":    true,
		"wouldResponse": rawResp,
		"request":       req,
	}
	s.sink.EmitAudit(ctx, audit, telemetry.AuditFields{
		WouldBlock:  true,
		ReasonCode:  rawResp.ReasonCode,
		BlockedBy:   rawResp.BlockedBy,
		PluginCount: len(timings),
	})
}
