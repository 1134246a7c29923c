package detectors

import (
	"context"
	"strings"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

var defaultDomainBlocklist = []string{"example.com", "mailinator.com", "tempmail", "evil.com"}

// DomainBlock blocks requests referencing any boundary-matched disallowed
// domain substring.
type DomainBlock struct {
	domains []string
}

// NewDomainBlock constructs the domain-block detector. An empty configured
// list falls back to the built-in default blocklist.
func NewDomainBlock(configured []string) *DomainBlock {
	list := configured
	if len(list) == 0 {
		list = defaultDomainBlocklist
	}
	return &DomainBlock{domains: list}
}

func (DomainBlock) Name() string { return "domain_block" }

func (d *DomainBlock) Eval(_ context.Context, _ *model.AnalyzeRequest, ctx *pipeline.EvalContext) *model.AnalyzeResponse {
	if dom, ok := domainInText(ctx.Pre.FullTextLower, d.domains); ok {
		return domainBlockResponse(dom)
	}
	for _, s := range ctx.Pre.Strings {
		if dom, ok := domainInText(s, d.domains); ok {
			return domainBlockResponse(dom)
		}
	}
	return nil
}

func domainBlockResponse(domain string) *model.AnalyzeResponse {
	return blockResponse(113, "domain_block", "Input contains disallowed domain.", map[string]interface{}{
		"plugin": "domain_block",
		"code":   "domain",
		"detail": domain,
	})
}

// domainInText performs a boundary-aware substring scan: a match counts only
// when the byte immediately before and after the occurrence is either absent
// (buffer edge) or not ASCII alphanumeric and not a hyphen.
func domainInText(text string, domains []string) (string, bool) {
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		searchStart := 0
		for searchStart <= len(text) {
			rel := strings.Index(text[searchStart:], domain)
			if rel < 0 {
				break
			}
			start := searchStart + rel
			end := start + len(domain)

			beforeOK := start == 0 || !isBoundaryChar(text[start-1])
			afterOK := end >= len(text) || !isBoundaryChar(text[end])

			if beforeOK && afterOK {
				return domain, true
			}
			searchStart = end
		}
	}
	return "", false
}

func isBoundaryChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-'
}
