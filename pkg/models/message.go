// Package models defines the data types shared across the investigation
// engine: conversation messages, tool calls and payloads, domain findings,
// and the error/audit records accumulated on investigation state.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// Message is one entry in the investigation conversation. The variant is
// determined by Role: AI messages may carry tool-call requests, Tool messages
// carry the name and payload of a completed call. All other fields are
// meaningful for every role.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// ToolCalls is set on AI messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID, ToolName and Payload are set on Tool messages.
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolName   string       `json:"tool_name,omitempty"`
	Payload    *ToolPayload `json:"payload,omitempty"`
}

// ToolCall is an LLM request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HasToolCalls reports whether the message is an AI message requesting
// at least one tool invocation.
func (m *Message) HasToolCalls() bool {
	return m.Role == RoleAI && len(m.ToolCalls) > 0
}

// PayloadKind discriminates the tool payload variants.
type PayloadKind string

const (
	PayloadParsed PayloadKind = "parsed"
	PayloadRaw    PayloadKind = "raw"
	PayloadError  PayloadKind = "error"
)

// ToolPayload is the result carried by a Tool message: a parsed JSON value,
// raw bytes with a content type, or a typed error.
type ToolPayload struct {
	Kind PayloadKind `json:"kind"`

	// Parsed holds the structured value when Kind == PayloadParsed.
	Parsed any `json:"parsed,omitempty"`

	// Raw and ContentType hold the unparsed result when Kind == PayloadRaw.
	Raw         []byte `json:"raw,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// ErrorKind and ErrorMessage describe the failure when Kind == PayloadError.
	// ErrorKind uses the tool error taxonomy: "invalid_arguments", "timeout",
	// "execution".
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ParsedPayload builds a payload from a structured JSON value.
func ParsedPayload(v any) *ToolPayload {
	return &ToolPayload{Kind: PayloadParsed, Parsed: v}
}

// RawPayload builds a payload from unparsed bytes.
func RawPayload(data []byte, contentType string) *ToolPayload {
	return &ToolPayload{Kind: PayloadRaw, Raw: data, ContentType: contentType}
}

// ErrorPayload builds a payload describing a tool failure.
func ErrorPayload(kind, msg string) *ToolPayload {
	return &ToolPayload{Kind: PayloadError, ErrorKind: kind, ErrorMessage: msg}
}

// IsError reports whether the payload describes a tool failure.
func (p *ToolPayload) IsError() bool {
	return p != nil && p.Kind == PayloadError
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Category    string          `json:"category,omitempty"`
}

// SystemMessage builds a system message with the current time.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

// HumanMessage builds a human message with the current time.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content, Timestamp: time.Now().UTC()}
}

// AIMessage builds an assistant message with the current time.
func AIMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls, Timestamp: time.Now().UTC()}
}

// ToolMessage builds a tool result message with the current time.
func ToolMessage(callID, name string, payload *ToolPayload) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: callID,
		ToolName:   name,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}
