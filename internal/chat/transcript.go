package chat

import (
	"github.com/myflowhq/flowsync/internal/domain"
)

// maxTranscriptMessages bounds the in-memory conversation window. Older
// messages are evicted from the front once the cap is exceeded.
const maxTranscriptMessages = 50

// transcript is the ordered conversation window. At most one assistant
// message is in flight at a time; it is located by id so token fragments
// arriving out of any send cycle still land on the right message.
type transcript struct {
	messages   []domain.Message
	inFlightID string
}

// append adds a message and evicts from the front past the cap. Messages
// with an id already present are dropped to keep ids unique.
func (t *transcript) append(msg domain.Message) {
	if t.indexOf(msg.ID) >= 0 {
		return
	}
	t.messages = append(t.messages, msg)
	t.evict()
}

// applyToken applies one assistant_token event. The first token for a
// message id creates the assistant message and marks it in flight; later
// tokens append to its content. A complete token detaches the in-flight
// reference.
func (t *transcript) applyToken(messageID, token string, complete bool) {
	if i := t.indexOf(messageID); i >= 0 {
		t.messages[i].Content += token
	} else {
		t.messages = append(t.messages, domain.NewAssistantMessage(messageID, token))
		t.inFlightID = messageID
		t.evict()
	}
	if complete {
		t.inFlightID = ""
	}
}

// detachInFlight drops the in-flight reference without touching content.
func (t *transcript) detachInFlight() {
	t.inFlightID = ""
}

// snapshot returns a copy of the window safe to hand to callers.
func (t *transcript) snapshot() []domain.Message {
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *transcript) indexOf(id string) int {
	// Scan from the end: the in-flight assistant message is almost always
	// the newest entry.
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *transcript) evict() {
	if n := len(t.messages) - maxTranscriptMessages; n > 0 {
		t.messages = append([]domain.Message(nil), t.messages[n:]...)
	}
}
