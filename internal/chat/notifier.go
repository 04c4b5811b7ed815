package chat

import (
	"github.com/myflowhq/flowsync/internal/domain"
)

// Notifier receives engine callbacks as the stream progresses. Callbacks are
// invoked synchronously from the session's dispatch path in event order, so
// implementations should return promptly and must not call back into the
// session from inside a callback.
type Notifier interface {
	// OnAssistantToken is called for every token fragment, including the
	// empty completion token.
	OnAssistantToken(messageID, token string, complete bool)
	// OnFlowsExtracted is called when the assistant proposes flows.
	OnFlowsExtracted(flows []domain.Flow)
	// OnToolExecuted is called after every server-side tool invocation.
	OnToolExecuted(name string, result ToolResult)
	// OnConversationUpdated is called when the server assigns or changes
	// the conversation id.
	OnConversationUpdated(conversationID string)
	// OnError is called when the session records a terminal error.
	OnError(err error)
}

// noopNotifier stands in when no notifier is supplied.
type noopNotifier struct{}

func (noopNotifier) OnAssistantToken(string, string, bool) {}
func (noopNotifier) OnFlowsExtracted([]domain.Flow)        {}
func (noopNotifier) OnToolExecuted(string, ToolResult)     {}
func (noopNotifier) OnConversationUpdated(string)          {}
func (noopNotifier) OnError(error)                         {}
