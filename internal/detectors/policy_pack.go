package detectors

import (
	"context"
	"regexp"
	"strings"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/logging"
	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

var backgroundCtx = context.Background()

const (
	maxPolicyPatterns   = 50
	maxPolicyPatternLen = 500
)

type compiledRule struct {
	tool       string
	arg        string
	contains   []string
	regexes    []*regexp.Regexp
	reasonCode int
	reason     string
}

// PolicyPack evaluates user-supplied rules compiled once at construction.
type PolicyPack struct {
	rules []compiledRule
}

// NewPolicyPack compiles the configured rules, dropping oversized or
// uncompilable patterns with a warning; the rule itself still participates
// on its remaining conditions.
func NewPolicyPack(rules []config.PolicyRule) *PolicyPack {
	compiled := make([]compiledRule, 0, len(rules))
	log := logging.FromContext(backgroundCtx)
	for _, r := range rules {
		patterns := r.Patterns
		if len(patterns) > maxPolicyPatterns {
			log.Warn().Int("pattern_count", len(patterns)).Int("limit", maxPolicyPatterns).Msg("policy rule regex list truncated")
			patterns = patterns[:maxPolicyPatterns]
		}
		var regexes []*regexp.Regexp
		for _, p := range patterns {
			if len(p) > maxPolicyPatternLen {
				log.Warn().Int("len", len(p)).Int("limit", maxPolicyPatternLen).Msg("dropping oversized policy regex pattern")
				continue
			}
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				log.Warn().Str("pattern", p).Err(err).Msg("failed to compile regex in policy pack, ignoring")
				continue
			}
			regexes = append(regexes, re)
		}
		contains := make([]string, len(r.Contains))
		for i, c := range r.Contains {
			contains[i] = strings.ToLower(c)
		}
		reasonCode := r.ReasonCode
		if reasonCode == 0 {
			reasonCode = 700
		}
		compiled = append(compiled, compiledRule{
			tool:       strings.ToLower(r.Tool),
			arg:        strings.ToLower(r.Arg),
			contains:   contains,
			regexes:    regexes,
			reasonCode: reasonCode,
			reason:     r.Reason,
		})
	}
	return &PolicyPack{rules: compiled}
}

func (PolicyPack) Name() string { return "policy_pack" }

func (p *PolicyPack) Eval(_ context.Context, req *model.AnalyzeRequest, ctx *pipeline.EvalContext) *model.AnalyzeResponse {
	for _, rule := range p.rules {
		if rule.tool != "" && strings.ToLower(req.ToolDefinition.Name) != rule.tool {
			continue
		}

		var targets []string
		if rule.arg != "" {
			raw, ok := req.InputValues[rule.arg]
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				continue
			}
			targets = []string{s}
		} else {
			targets = append(targets, ctx.Pre.FullTextLower)
			targets = append(targets, ctx.Pre.Strings...)
		}

		if ruleMatches(rule, targets) {
			reason := rule.reason
			if reason == "" {
				reason = "Policy rule triggered"
			}
			return blockResponse(rule.reasonCode, "policy_pack", reason, map[string]interface{}{
				"plugin": "policy_pack",
				"code":   "policy",
			})
		}
	}
	return nil
}

func ruleMatches(rule compiledRule, targets []string) bool {
	for _, t := range targets {
		tl := strings.ToLower(t)
		for _, c := range rule.contains {
			if strings.Contains(tl, c) {
				return true
			}
		}
		for _, re := range rule.regexes {
			if re.MatchString(tl) {
				return true
			}
		}
	}
	return false
}
