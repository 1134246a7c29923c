package detectors

import (
	"context"
	"regexp"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

var awsKeyRe = regexp.MustCompile(`(?i)akia[0-9a-z]{14,20}`)

// Secrets detects AWS access key material in the request text.
type Secrets struct{}

func (Secrets) Name() string { return "secrets" }

func (Secrets) Eval(_ context.Context, _ *model.AnalyzeRequest, ctx *pipeline.EvalContext) *model.AnalyzeResponse {
	if awsKeyRe.MatchString(ctx.Pre.FullTextLower) {
		return awsKeyBlock()
	}
	for _, s := range ctx.Pre.Strings {
		if awsKeyRe.MatchString(s) {
			return awsKeyBlock()
		}
	}
	return nil
}

func awsKeyBlock() *model.AnalyzeResponse {
	return blockResponse(201, "secrets", "Detected AWS key", map[string]interface{}{
		"plugin": "secrets",
		"code":   "aws_key",
	})
}
