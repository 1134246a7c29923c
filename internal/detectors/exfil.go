package detectors

import (
	"context"
	"strings"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

// exfilPatterns are the lower-cased substrings that imply prompt injection
// or data exfiltration intent.
var exfilPatterns = []string{
	"export all data",
	"ignore previous instructions",
	"reveal secrets",
	"print the system prompt",
	"exfiltrate",
}

// Exfil detects prompt-injection and data-exfiltration language in the
// concatenated user message and chat history.
type Exfil struct{}

func (Exfil) Name() string { return "exfil" }

func (Exfil) Eval(_ context.Context, _ *model.AnalyzeRequest, ctx *pipeline.EvalContext) *model.AnalyzeResponse {
	hay := ctx.Pre.FullTextLower
	for _, pat := range exfilPatterns {
		if strings.Contains(hay, pat) {
			return blockResponse(111, "exfil", "Detected data exfiltration pattern", map[string]interface{}{
				"plugin": "exfil",
				"code":   "pattern",
				"detail": pat,
			})
		}
	}
	return nil
}
