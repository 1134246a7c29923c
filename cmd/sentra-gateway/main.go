// Command sentra-gateway runs the policy-decision gateway HTTP server: it
// loads configuration, builds the detector pipeline in configured order,
// wires telemetry and metrics, and serves until an OS signal requests
// shutdown.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/detectors"
	"github.com/crlsmrls/sentra-gateway/internal/httpapi"
	"github.com/crlsmrls/sentra-gateway/internal/logging"
	"github.com/crlsmrls/sentra-gateway/internal/metrics"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
	"github.com/crlsmrls/sentra-gateway/internal/telemetry"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "development"

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentra-gateway: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel, os.Stdout)

	eventWriter, auditWriter, err := openSinkWriters(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open telemetry sinks")
	}

	sink := telemetry.NewSink(eventWriter, auditWriter, cfg.LogStdout, cfg.LogSampleN)

	reg := metrics.New(version,
		func() float64 { return float64(sink.LinesTotal()) },
		func() float64 { return float64(sink.WriteErrorsTotal()) },
	)

	pipe := pipeline.New(buildDetectors(cfg))

	server := httpapi.New(cfg, pipe, reg, sink, version, os.Stdout)

	log.Info().Str("version", version).Int("plugin_count", pipe.Len()).Msg("sentra-gateway starting")

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}

	closeWriter(eventWriter)
	closeWriter(auditWriter)
}

func closeWriter(w *telemetry.RotatingWriter) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close telemetry sink")
	}
}

// openSinkWriters constructs the optional rotating writers for the event and
// audit log files. A blank path leaves the corresponding writer nil; the
// sink treats a nil audit writer as "fall back to the event writer".
func openSinkWriters(cfg *config.Config) (*telemetry.RotatingWriter, *telemetry.RotatingWriter, error) {
	var eventWriter, auditWriter *telemetry.RotatingWriter
	var err error

	if cfg.LogFile != "" {
		eventWriter, err = telemetry.NewRotatingWriter(cfg.LogFile, cfg.LogMaxBytes, cfg.LogRotateKeep, cfg.LogRotateCompress)
		if err != nil {
			return nil, nil, fmt.Errorf("opening event log %q: %w", cfg.LogFile, err)
		}
	}

	if cfg.AuditLogFile != "" {
		auditWriter, err = telemetry.NewRotatingWriter(cfg.AuditLogFile, cfg.LogMaxBytes, cfg.LogRotateKeep, cfg.LogRotateCompress)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log %q: %w", cfg.AuditLogFile, err)
		}
	}

	return eventWriter, auditWriter, nil
}

// buildDetectors resolves the configured plugin order into concrete
// detector instances, dropping unknown identifiers with a warning. External
// HTTP detectors are registered under their own configured name rather than
// a fixed identifier, and participate in the order wherever that name
// appears.
func buildDetectors(cfg *config.Config) []pipeline.Detector {
	external := make(map[string]config.ExternalHTTPDefinition, len(cfg.PluginConfig.ExternalHTTP))
	for _, def := range cfg.PluginConfig.ExternalHTTP {
		external[def.Name] = def
	}

	var built []pipeline.Detector
	for _, name := range cfg.PluginOrderList() {
		switch name {
		case "exfil":
			built = append(built, detectors.Exfil{})
		case "secrets":
			built = append(built, detectors.Secrets{})
		case "email_bcc":
			built = append(built, detectors.NewEmailBCC(cfg.PluginConfig.CompanyDomain))
		case "pii":
			built = append(built, detectors.NewPII(cfg.PluginConfig.CompanyDomain, cfg.PluginConfig.PIIKeywords))
		case "domain_block":
			built = append(built, detectors.NewDomainBlock(cfg.PluginConfig.DomainBlocklist))
		case "policy_pack":
			built = append(built, detectors.NewPolicyPack(cfg.PluginConfig.Policies))
		default:
			if def, ok := external[name]; ok {
				built = append(built, detectors.NewExternalHTTP(def))
				continue
			}
			log.Warn().Str("plugin", name).Msg("unknown detector identifier, skipping")
		}
	}
	return built
}
