// Package model defines the wire types exchanged between the planner and
// the gateway: the analyze request/response pair and the protocol-level
// error envelope. Field names follow the camelCase JSON contract described
// in the gateway's HTTP surface; unknown fields are ignored on decode.
package model

import (
	"encoding/json"
	"strings"
)

// ChatItem is one entry of an optional chat history. Only the content field
// is consumed (by the evaluation context builder); the rest is carried
// through untouched for forward compatibility.
type ChatItem struct {
	ID        string `json:"id,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// PrevToolOutput is one previously executed tool's recorded output. It is
// logged but never inspected by detectors.
type PrevToolOutput struct {
	ToolID    string          `json:"toolId,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Outputs   json.RawMessage `json:"outputs,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// PlannerContext carries the user-facing side of the proposed tool call.
type PlannerContext struct {
	UserMessage         string            `json:"userMessage"`
	Thought             string            `json:"thought,omitempty"`
	ChatHistory         []json.RawMessage `json:"chatHistory,omitempty"`
	PreviousToolOutputs []PrevToolOutput  `json:"previousToolOutputs,omitempty"`
}

// ToolParam describes one input or output parameter of a tool definition.
type ToolParam struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        json.RawMessage `json:"type,omitempty"`
}

// ToolDefinition describes the tool the planner proposes to invoke.
type ToolDefinition struct {
	ID              string      `json:"id,omitempty"`
	Type            string      `json:"type,omitempty"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	InputParameters []ToolParam `json:"inputParameters,omitempty"`
	OutputParameters []ToolParam `json:"outputParameters,omitempty"`
}

// ConversationMetadata is opaque: logged but never used in decisions.
type ConversationMetadata struct {
	Agent          json.RawMessage `json:"agent,omitempty"`
	User           json.RawMessage `json:"user,omitempty"`
	Trigger        json.RawMessage `json:"trigger,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	PlanID         string          `json:"planId,omitempty"`
	PlanStepID     string          `json:"planStepId,omitempty"`
}

// AnalyzeRequest is the planner's proposed tool execution.
type AnalyzeRequest struct {
	PlannerContext       PlannerContext         `json:"plannerContext"`
	ToolDefinition       ToolDefinition         `json:"toolDefinition"`
	InputValues          map[string]interface{} `json:"inputValues"`
	ConversationMetadata *ConversationMetadata  `json:"conversationMetadata,omitempty"`
}

// MissingRequiredFields returns the dotted paths of required fields that are
// absent or blank after trimming. An empty slice means the request is valid.
func (r *AnalyzeRequest) MissingRequiredFields() []string {
	var missing []string
	if strings.TrimSpace(r.PlannerContext.UserMessage) == "" {
		missing = append(missing, "plannerContext.userMessage")
	}
	if strings.TrimSpace(r.ToolDefinition.Name) == "" {
		missing = append(missing, "toolDefinition.name")
	}
	return missing
}

// AnalyzeResponse is the gateway's allow/block verdict.
type AnalyzeResponse struct {
	BlockAction bool                   `json:"blockAction"`
	ReasonCode  *int                   `json:"reasonCode,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	BlockedBy   string                 `json:"blockedBy,omitempty"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
}

// Allow is the canonical non-blocking verdict: every optional field absent.
func Allow() AnalyzeResponse {
	return AnalyzeResponse{BlockAction: false}
}

// ErrorResponse is the protocol-level failure envelope.
type ErrorResponse struct {
	ErrorCode   int                    `json:"errorCode"`
	Message     string                 `json:"message"`
	HTTPStatus  int                    `json:"httpStatus"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
}

func IntPtr(v int) *int { return &v }
