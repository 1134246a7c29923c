package detectors

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/logging"
	"github.com/crlsmrls/sentra-gateway/internal/model"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
)

const defaultExternalHTTPTemplate = `{
  "userMessage": "${userMessage}",
  "toolName": "${toolName}",
  "input": ${inputJson}
}`

// ExternalHTTP evaluates a remotely-callable policy service, rendering a
// templated JSON body and interpreting a boolean block signal from the
// response.
type ExternalHTTP struct {
	def      config.ExternalHTTPDefinition
	failOpen bool
	client   *http.Client
}

// NewExternalHTTP constructs an external-HTTP detector for one configured
// definition, defaulting optional fields as the original project does.
// failOpen defaults to true when unset, matching the original's
// external_http_default_fail_open.
func NewExternalHTTP(def config.ExternalHTTPDefinition) *ExternalHTTP {
	if def.TimeoutMs == 0 {
		def.TimeoutMs = 500
	}
	if def.BlockField == "" {
		def.BlockField = "block"
	}
	if def.ReasonCode == 0 {
		def.ReasonCode = 801
	}
	failOpen := true
	if def.FailOpen != nil {
		failOpen = *def.FailOpen
	}
	return &ExternalHTTP{
		def:      def,
		failOpen: failOpen,
		client:   &http.Client{Timeout: time.Duration(def.TimeoutMs) * time.Millisecond},
	}
}

func (e *ExternalHTTP) Name() string { return e.def.Name }

func (e *ExternalHTTP) Eval(ctx context.Context, req *model.AnalyzeRequest, _ *pipeline.EvalContext) *model.AnalyzeResponse {
	body := e.renderBody(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.def.URL, strings.NewReader(body))
	if err != nil {
		return e.networkFailure(ctx, err)
	}
	httpReq.Header.Set("content-type", "application/json")
	if e.def.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.def.BearerToken)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return e.networkFailure(ctx, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return e.readFailure(ctx, err, resp.StatusCode)
	}

	var parsed interface{}
	if err := json.Unmarshal(text, &parsed); err != nil {
		return e.parseFailure(ctx, err, resp.StatusCode)
	}

	block, ok := e.extractBlock(parsed)
	if !ok {
		return nil
	}
	if !block {
		return nil
	}
	reason := e.def.Reason
	if reason == "" {
		reason = "External policy block"
	}
	return blockResponse(e.def.ReasonCode, e.def.Name, reason, map[string]interface{}{
		"plugin": "external_http",
		"code":   "block",
		"status": resp.StatusCode,
	})
}

func (e *ExternalHTTP) renderBody(req *model.AnalyzeRequest) string {
	template := e.def.RequestTemplate
	if template == "" {
		template = defaultExternalHTTPTemplate
	}

	userMessageRaw := req.PlannerContext.UserMessage
	toolNameRaw := req.ToolDefinition.Name

	inputJSON, err := json.Marshal(req.InputValues)
	if err != nil {
		inputJSON = []byte("{}")
	}
	userMessageJSON, err := json.Marshal(userMessageRaw)
	if err != nil {
		userMessageJSON = []byte(`""`)
	}
	toolNameJSON, err := json.Marshal(toolNameRaw)
	if err != nil {
		toolNameJSON = []byte(`""`)
	}

	rendered := strings.ReplaceAll(template, "${inputJson}", string(inputJSON))
	rendered = strings.ReplaceAll(rendered, "${userMessageJson}", string(userMessageJSON))
	rendered = strings.ReplaceAll(rendered, "${toolNameJson}", string(toolNameJSON))
	rendered = strings.ReplaceAll(rendered, "${userMessage}", unquoteJSONString(userMessageJSON))
	rendered = strings.ReplaceAll(rendered, "${toolName}", unquoteJSONString(toolNameJSON))
	return rendered
}

// unquoteJSONString strips the surrounding quotes from a json.Marshal'd
// string, leaving its escape sequences (\n, \", \\) intact.
func unquoteJSONString(jsonStr []byte) string {
	if len(jsonStr) >= 2 {
		return string(jsonStr[1 : len(jsonStr)-1])
	}
	return ""
}

// extractBlock resolves the configured blockField against the parsed
// response body. The second return value is false when no signal is
// present (the pipeline should allow without opinion).
func (e *ExternalHTTP) extractBlock(val interface{}) (bool, bool) {
	field := e.def.BlockField
	switch field {
	case "block":
		obj, ok := val.(map[string]interface{})
		if !ok {
			return false, false
		}
		b, ok := obj["block"].(bool)
		return b, ok
	case "allow":
		obj, ok := val.(map[string]interface{})
		if !ok {
			return false, false
		}
		a, ok := obj["allow"].(bool)
		if !ok {
			return false, false
		}
		return !a, true
	case "/":
		if !e.def.NonEmptyPointerBlocks {
			if b, ok := val.(bool); ok {
				return b, true
			}
			return false, false
		}
		switch v := val.(type) {
		case []interface{}:
			return len(v) > 0, true
		case map[string]interface{}:
			return len(v) > 0, true
		case bool:
			return v, true
		}
		return false, false
	default:
		if strings.Contains(field, "/") {
			ptr, ok := resolveJSONPointer(val, field)
			if !ok {
				return false, false
			}
			if b, ok := ptr.(bool); ok {
				return b, true
			}
			if e.def.NonEmptyPointerBlocks {
				switch v := ptr.(type) {
				case []interface{}:
					return len(v) > 0, true
				case map[string]interface{}:
					return len(v) > 0, true
				}
			}
			return false, false
		}
		return false, false
	}
}

// resolveJSONPointer resolves an RFC 6901-style JSON pointer against a
// decoded JSON value.
func resolveJSONPointer(val interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return val, true
	}
	ptr := strings.TrimPrefix(pointer, "/")
	cur := val
	for _, tok := range strings.Split(ptr, "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		switch v := cur.(type) {
		case map[string]interface{}:
			next, ok := v[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func (e *ExternalHTTP) networkFailure(ctx context.Context, err error) *model.AnalyzeResponse {
	log := logging.FromContext(ctx)
	if !e.failOpen {
		log.Warn().Str("plugin", e.def.Name).Err(err).Msg("external_http network error (fail-closed)")
		reason := e.def.Reason
		if reason == "" {
			reason = "External HTTP error"
		}
		return blockResponse(e.def.ReasonCode, e.def.Name, reason, map[string]interface{}{
			"plugin": "external_http",
			"code":   "network_error",
		})
	}
	log.Warn().Str("plugin", e.def.Name).Err(err).Msg("external_http network error (fail-open)")
	return nil
}

func (e *ExternalHTTP) readFailure(ctx context.Context, err error, status int) *model.AnalyzeResponse {
	log := logging.FromContext(ctx)
	if !e.failOpen {
		reason := e.def.Reason
		if reason == "" {
			reason = "External HTTP read error"
		}
		return blockResponse(e.def.ReasonCode, e.def.Name, reason, map[string]interface{}{
			"plugin": "external_http",
			"code":   "read_error",
			"status": status,
		})
	}
	log.Warn().Str("plugin", e.def.Name).Err(err).Msg("external_http read error (fail-open)")
	return nil
}

func (e *ExternalHTTP) parseFailure(ctx context.Context, err error, status int) *model.AnalyzeResponse {
	log := logging.FromContext(ctx)
	if !e.failOpen {
		reason := e.def.Reason
		if reason == "" {
			reason = "External HTTP parse error"
		}
		return blockResponse(e.def.ReasonCode, e.def.Name, reason, map[string]interface{}{
			"plugin": "external_http",
			"code":   "parse_error",
			"status": status,
		})
	}
	log.Warn().Str("plugin", e.def.Name).Err(err).Msg("external_http parse error (fail-open)")
	return nil
}
