package detectors

import (
	"context"
	"regexp"
	"strings"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	ibanRe  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	phoneRe = regexp.MustCompile(`\+?\d{1,3}[\s.-]?\(?(?:\d{1,4})\)?[\s.-]?\d{3,}[\s.-]?\d{3,}`)
)

// PII detects email addresses outside the company domain, IBANs, phone
// numbers, and configured keyword hits.
type PII struct {
	companyDomain string
	keywords      []string
}

// NewPII constructs the PII detector bound to the process-wide plugin
// configuration.
func NewPII(companyDomain string, keywords []string) *PII {
	return &PII{companyDomain: companyDomain, keywords: keywords}
}

func (p *PII) Name() string { return "pii" }

func (p *PII) containsNonCompanyPII(text string) bool {
	domainSuffix := "@" + p.companyDomain
	for _, m := range emailRe.FindAllString(text, -1) {
		if !strings.HasSuffix(strings.ToLower(m), domainSuffix) {
			return true
		}
	}
	return false
}

func (p *PII) builtinMatches(text string) bool {
	return p.containsNonCompanyPII(text) || ibanRe.MatchString(text) || phoneRe.MatchString(text)
}

func (p *PII) Eval(_ context.Context, _ *model.AnalyzeRequest, ctx *pipeline.EvalContext) *model.AnalyzeResponse {
	hay := ctx.Pre.FullTextLower
	if p.builtinMatches(hay) {
		return piiBlock("builtin")
	}
	if len(p.keywords) > 0 {
		if matcherFor(p.keywords).MatchString(hay) {
			return piiBlock("keyword")
		}
	}
	for _, s := range ctx.Pre.Strings {
		if p.builtinMatches(s) {
			return piiBlock("input")
		}
		if len(p.keywords) > 0 && matcherFor(p.keywords).MatchString(s) {
			return piiBlock("keyword")
		}
	}
	return nil
}

func piiBlock(code string) *model.AnalyzeResponse {
	return blockResponse(202, "pii", "Detected potential PII in content.", map[string]interface{}{
		"plugin": "pii",
		"code":   code,
	})
}
