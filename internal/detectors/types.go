// Package detectors implements the pipeline.Detector interface for the
// gateway's six local checks (exfiltration, secrets, PII, email-BCC,
// domain-block, policy-pack) plus the remotely-callable external-HTTP
// detector.
package detectors

import "github.com/crlsmrls/sentra-gateway/internal/model"

func blockResponse(reasonCode int, blockedBy, reason string, diagnostics map[string]interface{}) *model.AnalyzeResponse {
	return &model.AnalyzeResponse{
		BlockAction: true,
		ReasonCode:  model.IntPtr(reasonCode),
		Reason:      reason,
		BlockedBy:   blockedBy,
		Diagnostics: diagnostics,
	}
}
