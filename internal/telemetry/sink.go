package telemetry

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/crlsmrls/sentra-gateway/internal/logging"
)

// EventFields carries the structured fields mirrored to stdout for one
// analyze-decision telemetry record.
type EventFields struct {
	BlockAction     bool
	ReasonCode      *int
	BlockedBy       string
	LatencyMs       int64
	AuditSuppressed bool
	PluginCount     int
}

// AuditFields carries the structured fields mirrored to stdout for one
// audit record.
type AuditFields struct {
	WouldBlock  bool
	ReasonCode  *int
	BlockedBy   string
	PluginCount int
}

// Sink routes JSON telemetry payloads to the configured event and audit
// writers, optionally mirroring a sampled subset to the structured logger.
type Sink struct {
	eventWriter *RotatingWriter
	auditWriter *RotatingWriter
	logStdout   bool
	sampleN     int64
	sampleCtr   atomic.Uint64

	linesTotal       atomic.Uint64
	writeErrorsTotal atomic.Uint64
	logFileSizeBytes atomic.Int64
}

// LogFileSizeBytes returns the most recently observed size of the active
// sink file that last accepted a successful write (0 if nothing has been
// written yet, mirroring the disabled-telemetry case).
func (s *Sink) LogFileSizeBytes() int64 { return s.logFileSizeBytes.Load() }

// NewSink constructs a sink over the (optionally nil) event and audit
// writers. A nil eventWriter/auditWriter simply drops that stream's writes
// to disk while still honoring stdout mirroring.
func NewSink(eventWriter, auditWriter *RotatingWriter, logStdout bool, sampleN int64) *Sink {
	return &Sink{eventWriter: eventWriter, auditWriter: auditWriter, logStdout: logStdout, sampleN: sampleN}
}

// LinesTotal returns the cumulative count of successfully written lines.
func (s *Sink) LinesTotal() uint64 { return s.linesTotal.Load() }

// WriteErrorsTotal returns the cumulative count of failed writes.
func (s *Sink) WriteErrorsTotal() uint64 { return s.writeErrorsTotal.Load() }

// EmitEvent writes payload to the event stream and, when sampled, mirrors
// the supplied fields to the structured logger.
func (s *Sink) EmitEvent(ctx context.Context, payload interface{}, fields EventFields) {
	wrote := s.writeLine(ctx, payload, s.eventWriter, "telemetry")
	if (wrote || s.eventWriter == nil) && s.shouldLogStdout() {
		logging.FromContext(ctx).Info().
			Str("event", "telemetry").
			Bool("blockAction", fields.BlockAction).
			Interface("reasonCode", fields.ReasonCode).
			Str("blockedBy", fields.BlockedBy).
			Int64("latencyMs", fields.LatencyMs).
			Bool("auditSuppressed", fields.AuditSuppressed).
			Int("pluginCount", fields.PluginCount).
			Msg("telemetry")
	}
}

// EmitAudit writes payload to the audit stream, falling back to the event
// stream when no dedicated audit writer is configured.
func (s *Sink) EmitAudit(ctx context.Context, payload interface{}, fields AuditFields) {
	writer := s.auditWriter
	if writer == nil {
		writer = s.eventWriter
	}
	wrote := s.writeLine(ctx, payload, writer, "audit")
	if !wrote && writer == nil {
		logging.FromContext(ctx).Warn().Msg("audit record dropped: no audit or telemetry writer configured")
	}
	if (wrote || writer == nil) && s.shouldLogStdout() {
		logging.FromContext(ctx).Info().
			Str("event", "audit").
			Bool("audit", true).
			Bool("wouldBlock", fields.WouldBlock).
			Interface("reasonCode", fields.ReasonCode).
			Str("blockedBy", fields.BlockedBy).
			Int("pluginCount", fields.PluginCount).
			Msg("audit")
	}
}

func (s *Sink) writeLine(ctx context.Context, payload interface{}, writer *RotatingWriter, kind string) bool {
	if writer == nil {
		return false
	}
	line, err := json.Marshal(payload)
	if err != nil {
		logging.FromContext(ctx).Warn().Str("kind", kind).Err(err).Msg("failed to marshal telemetry payload")
		s.writeErrorsTotal.Add(1)
		return false
	}
	line = append(line, '\n')
	if _, err := writer.Write(line); err != nil {
		logging.FromContext(ctx).Warn().Str("kind", kind).Err(err).Msg("failed to write telemetry line")
		s.writeErrorsTotal.Add(1)
		return false
	}
	s.linesTotal.Add(1)
	s.logFileSizeBytes.Store(writer.CurrentSize())
	return true
}

// shouldLogStdout decides, given the sampling configuration, whether this
// call should also mirror to the structured logger.
func (s *Sink) shouldLogStdout() bool {
	if !s.logStdout {
		return false
	}
	if s.sampleN <= 1 {
		return true
	}
	prev := s.sampleCtr.Add(1) - 1
	return prev%uint64(s.sampleN) == 0
}
