package detectors

import (
	"context"
	"strings"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

// EmailBCC blocks email-shaped tool invocations whose bcc argument escapes
// the company domain.
type EmailBCC struct {
	companyDomain string
}

// NewEmailBCC constructs the email-BCC detector bound to the company domain.
func NewEmailBCC(companyDomain string) *EmailBCC {
	return &EmailBCC{companyDomain: companyDomain}
}

func (EmailBCC) Name() string { return "email_bcc" }

func (e *EmailBCC) Eval(_ context.Context, req *model.AnalyzeRequest, _ *pipeline.EvalContext) *model.AnalyzeResponse {
	toolName := strings.ToLower(req.ToolDefinition.Name)
	if !strings.Contains(toolName, "mail") && !strings.Contains(toolName, "email") {
		return nil
	}
	raw, ok := req.InputValues["bcc"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	addr := strings.ToLower(strings.TrimSpace(s))
	if addr == "" {
		return nil
	}
	domainSuffix := "@" + e.companyDomain
	if strings.HasSuffix(addr, domainSuffix) {
		return nil
	}
	return blockResponse(112, "email_bcc", "Noncompliant BCC domain.", map[string]interface{}{
		"plugin": "email_bcc",
		"code":   "bcc",
		"detail": addr,
	})
}
