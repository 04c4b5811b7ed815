// Package chat implements the streaming chat synchronization engine: it
// opens a long-lived event stream against the My Flow backend, assembles
// assistant replies from token fragments, tracks flows proposed mid-stream,
// and reconciles them with a shared list cache.
package chat

import (
	"encoding/json"

	"github.com/myflowhq/flowsync/internal/domain"
)

// EventType discriminates stream event envelopes.
type EventType string

const (
	// EventAssistantToken carries one fragment of the assistant reply.
	EventAssistantToken EventType = "assistant_token"
	// EventFlowsExtracted announces flows the assistant proposed from the
	// conversation so far.
	EventFlowsExtracted EventType = "flows_extracted"
	// EventToolExecuted reports the outcome of a server-side tool call.
	EventToolExecuted EventType = "tool_executed"
	// EventConversationUpdated reports the canonical conversation id.
	EventConversationUpdated EventType = "conversation_updated"
	// EventError is a fatal failure signalled by the server.
	EventError EventType = "error"
	// EventDone marks the end of a response cycle. It carries no payload;
	// completion is already signalled by the final token event.
	EventDone EventType = "done"
)

// envelope is the wire form of every stream event: a type tag plus a payload
// whose shape depends on the tag. Unknown tags are ignored so the server can
// add event types without breaking older clients.
type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tokenPayload struct {
	Token      string `json:"token"`
	MessageID  string `json:"messageId"`
	IsComplete bool   `json:"isComplete"`
}

type flowsPayload struct {
	Flows []domain.Flow `json:"flows"`
}

// ToolResult is the outcome of a server-side tool invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type toolPayload struct {
	ToolName  string          `json:"tool_name"`
	ToolID    string          `json:"tool_id,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    ToolResult      `json:"result"`
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// streamRequest is the body of one POST to the streaming endpoint. The full
// trailing transcript window rides along so the server can rebuild context.
type streamRequest struct {
	ContextID       string           `json:"contextId"`
	ConversationID  string           `json:"conversationId,omitempty"`
	Messages        []domain.Message `json:"messages"`
	IsContextSwitch bool             `json:"isContextSwitch"`
}
