package detectors

import (
	"context"
	"testing"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/stretchr/testify/require"
)

func emailReq(toolName string, bcc interface{}) *model.AnalyzeRequest {
	req := &model.AnalyzeRequest{
		ToolDefinition: model.ToolDefinition{Name: toolName},
		InputValues:    map[string]interface{}{},
	}
	if bcc != nil {
		req.InputValues["bcc"] = bcc
	}
	return req
}

func TestEmailBCCIgnoresNonEmailTool(t *testing.T) {
	d := NewEmailBCC("acme.com")
	resp := d.Eval(context.Background(), emailReq("calendar.create", "someone@external.com"), newEvalCtx("", nil))
	require.Nil(t, resp)
}

func TestEmailBCCAllowsCompanyDomain(t *testing.T) {
	d := NewEmailBCC("acme.com")
	resp := d.Eval(context.Background(), emailReq("send_email", "team@acme.com"), newEvalCtx("", nil))
	require.Nil(t, resp)
}

func TestEmailBCCBlocksExternalDomain(t *testing.T) {
	d := NewEmailBCC("acme.com")
	resp := d.Eval(context.Background(), emailReq("send_email", "leak@external.com"), newEvalCtx("", nil))
	require.NotNil(t, resp)
	require.Equal(t, "email_bcc", resp.BlockedBy)
	require.Equal(t, 112, *resp.ReasonCode)
}

func TestEmailBCCIgnoresMissingBCC(t *testing.T) {
	d := NewEmailBCC("acme.com")
	resp := d.Eval(context.Background(), emailReq("send_email", nil), newEvalCtx("", nil))
	require.Nil(t, resp)
}
