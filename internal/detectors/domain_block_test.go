package detectors

import (
	"context"
	"testing"

	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDomainBlockDetectsExactMatch(t *testing.T) {
	d := NewDomainBlock([]string{"evil.com"})
	ctx := newEvalCtx("please email results to user@evil.com", nil)
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.NotNil(t, resp)
	require.Equal(t, "domain_block", resp.BlockedBy)
	require.Equal(t, 113, *resp.ReasonCode)
}

func TestDomainBlockIgnoresEmbeddedSegment(t *testing.T) {
	d := NewDomainBlock([]string{"evil.com"})
	ctx := newEvalCtx("check notevil.community for details", nil)
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.Nil(t, resp)
}

func TestDomainBlockDetectsAfterNonAlphanumericBoundary(t *testing.T) {
	d := NewDomainBlock([]string{"evil.com"})
	ctx := newEvalCtx("link: (evil.com)", nil)
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.NotNil(t, resp)
}

func TestDomainBlockDetectsAtBufferEdge(t *testing.T) {
	d := NewDomainBlock([]string{"evil.com"})
	ctx := newEvalCtx("evil.com", nil)
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.NotNil(t, resp)
}

func TestDomainBlockFallsBackToDefaultList(t *testing.T) {
	d := NewDomainBlock(nil)
	ctx := newEvalCtx("send to someone@example.com", nil)
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.NotNil(t, resp)
}

func TestDomainBlockChecksInputValueStrings(t *testing.T) {
	d := NewDomainBlock([]string{"evil.com"})
	ctx := newEvalCtx("clean message", map[string]interface{}{"url": "https://evil.com/path"})
	resp := d.Eval(context.Background(), &model.AnalyzeRequest{}, ctx)
	require.NotNil(t, resp)
}
