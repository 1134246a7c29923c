package detectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func extHTTPReq() *model.AnalyzeRequest {
	return &model.AnalyzeRequest{
		PlannerContext: model.PlannerContext{UserMessage: `hello "world"` + "\n"},
		ToolDefinition: model.ToolDefinition{Name: "send_email"},
		InputValues:    map[string]interface{}{"to": "a@b.com"},
	}
}

func TestExternalHTTPRenderBodyDefaultTemplate(t *testing.T) {
	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: "http://example.invalid"})
	body := e.renderBody(extHTTPReq())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Equal(t, "send_email", decoded["toolName"])
	require.Contains(t, decoded["userMessage"], "hello")
}

func TestExternalHTTPRenderBodySupportsJSONPlaceholders(t *testing.T) {
	e := NewExternalHTTP(config.ExternalHTTPDefinition{
		Name:            "svc",
		URL:             "http://example.invalid",
		RequestTemplate: `{"input": ${inputJson}, "tool": ${toolNameJson}}`,
	})
	body := e.renderBody(extHTTPReq())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	input, ok := decoded["input"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "a@b.com", input["to"])
	require.Equal(t, "send_email", decoded["tool"])
}

func TestExternalHTTPBlocksOnBlockTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"block": true})
	}))
	defer srv.Close()

	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: srv.URL, ReasonCode: 801})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.NotNil(t, resp)
	require.Equal(t, "svc", resp.BlockedBy)
	require.Equal(t, 801, *resp.ReasonCode)
}

func TestExternalHTTPAllowsOnBlockFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"block": false})
	}))
	defer srv.Close()

	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: srv.URL})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.Nil(t, resp)
}

func TestExternalHTTPAllowsOnAllowField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"allow": true})
	}))
	defer srv.Close()

	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: srv.URL, BlockField: "allow"})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.Nil(t, resp)
}

func TestExternalHTTPFailOpenOnNetworkError(t *testing.T) {
	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: "http://127.0.0.1:1", FailOpen: boolPtr(true)})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.Nil(t, resp)
}

func TestExternalHTTPFailOpenIsDefaultWhenUnset(t *testing.T) {
	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: "http://127.0.0.1:1"})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.Nil(t, resp)
}

func TestExternalHTTPFailClosedOnNetworkError(t *testing.T) {
	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: "http://127.0.0.1:1", FailOpen: boolPtr(false), ReasonCode: 801})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.NotNil(t, resp)
	require.Equal(t, "network_error", resp.Diagnostics["code"])
}

func TestExternalHTTPSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"block": false})
	}))
	defer srv.Close()

	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: srv.URL, BearerToken: "tok123"})
	_ = e.Eval(context.Background(), extHTTPReq(), nil)
	require.Equal(t, "Bearer tok123", gotAuth)
}

func TestExternalHTTPJSONPointerBlockField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{"block": true}})
	}))
	defer srv.Close()

	e := NewExternalHTTP(config.ExternalHTTPDefinition{Name: "svc", URL: srv.URL, BlockField: "/result/block"})
	resp := e.Eval(context.Background(), extHTTPReq(), nil)
	require.NotNil(t, resp)
}
