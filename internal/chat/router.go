package chat

import (
	"encoding/json"
	"fmt"
)

// routeFrame decodes one frame's envelope and dispatches it by type. It
// returns true when the read loop should stop: the server signalled a
// protocol error, or the frame belongs to a superseded send cycle. A frame
// that fails to parse is logged and skipped; one bad frame never aborts the
// stream.
func (s *Session) routeFrame(gen uint64, frame string) bool {
	var env envelope
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		s.logger.Warn("[chat] dropping malformed frame", "error", err)
		return false
	}

	switch env.Type {
	case EventAssistantToken:
		return s.applyToken(gen, env.Payload)
	case EventFlowsExtracted:
		return s.applyFlows(gen, env.Payload)
	case EventToolExecuted:
		return s.applyToolResult(gen, env.Payload)
	case EventConversationUpdated:
		return s.applyConversationUpdate(gen, env.Payload)
	case EventError:
		return s.applyServerError(gen, env.Payload)
	case EventDone:
		return false
	default:
		s.logger.Debug("[chat] ignoring unknown event type", "type", string(env.Type))
		return false
	}
}

func (s *Session) applyToken(gen uint64, raw json.RawMessage) bool {
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[chat] dropping malformed assistant_token payload", "error", err)
		return false
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return true
	}
	s.transcript.applyToken(p.MessageID, p.Token, p.IsComplete)
	if p.IsComplete {
		s.streaming = false
	}
	s.mu.Unlock()

	s.deps.Notifier.OnAssistantToken(p.MessageID, p.Token, p.IsComplete)
	return false
}

func (s *Session) applyFlows(gen uint64, raw json.RawMessage) bool {
	var p flowsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[chat] dropping malformed flows_extracted payload", "error", err)
		return false
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return true
	}
	s.extractions.populate(p.Flows)
	s.mu.Unlock()

	s.logger.Info("[chat] flows extracted", "count", len(p.Flows))
	s.deps.Notifier.OnFlowsExtracted(p.Flows)
	return false
}

func (s *Session) applyToolResult(gen uint64, raw json.RawMessage) bool {
	var p toolPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[chat] dropping malformed tool_executed payload", "error", err)
		return false
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return true
	}
	contextID := s.contextID
	if !p.Result.Success {
		s.errMsg = toolFailureMessage(p)
	}
	s.mu.Unlock()

	if p.Result.Success {
		// The tool may have created or changed flows server-side; ask the
		// cache to refresh the list for this context.
		s.deps.Cache.Invalidate(contextID)
	}
	s.deps.Notifier.OnToolExecuted(p.ToolName, p.Result)
	return false
}

func toolFailureMessage(p toolPayload) string {
	reason := p.Result.Error
	if reason == "" {
		reason = p.Result.Message
	}
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("tool %s failed: %s", p.ToolName, reason)
}

func (s *Session) applyConversationUpdate(gen uint64, raw json.RawMessage) bool {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[chat] dropping malformed conversation_updated payload", "error", err)
		return false
	}
	if p.ConversationID == "" {
		return false
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return true
	}
	changed := s.conversationID != p.ConversationID
	s.conversationID = p.ConversationID
	s.mu.Unlock()

	if changed {
		s.deps.Notifier.OnConversationUpdated(p.ConversationID)
	}
	return false
}

// applyServerError handles an explicit error event. The server already
// decided the request failed, so the cycle ends without retrying.
func (s *Session) applyServerError(gen uint64, raw json.RawMessage) bool {
	var p errorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[chat] dropping malformed error payload", "error", err)
		return false
	}

	msg := p.Message
	if msg == "" {
		msg = "the chat service reported an error"
	}
	if p.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, p.Code)
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return true
	}
	s.state = StateError
	s.streaming = false
	s.errMsg = msg
	s.transcript.detachInFlight()
	s.mu.Unlock()

	s.logger.Error("[chat] server signalled stream error", "message", p.Message, "code", p.Code)
	s.deps.Notifier.OnError(fmt.Errorf("%w: %s", errServerError, msg))
	return true
}
