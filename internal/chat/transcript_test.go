package chat

import (
	"fmt"
	"testing"

	"github.com/myflowhq/flowsync/internal/domain"
)

func TestTranscriptAssemblesTokensInArrivalOrder(t *testing.T) {
	tr := &transcript{}

	for _, token := range []string{"Hello", " from", " AI"} {
		tr.applyToken("m1", token, false)
	}
	tr.applyToken("m1", "", true)

	msgs := tr.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
	if msgs[0].Content != "Hello from AI" {
		t.Errorf("content = %q, want %q", msgs[0].Content, "Hello from AI")
	}
	if msgs[0].Role != domain.MessageRoleAssistant {
		t.Errorf("role = %q, want %q", msgs[0].Role, domain.MessageRoleAssistant)
	}
	if msgs[0].ID != "m1" {
		t.Errorf("id = %q, want %q", msgs[0].ID, "m1")
	}
}

func TestTranscriptFirstTokenMarksMessageInFlight(t *testing.T) {
	tr := &transcript{}

	tr.applyToken("m1", "partial", false)
	if tr.inFlightID != "m1" {
		t.Fatalf("inFlightID = %q, want %q", tr.inFlightID, "m1")
	}

	tr.applyToken("m1", " done", true)
	if tr.inFlightID != "" {
		t.Fatalf("expected in-flight reference cleared after completion, got %q", tr.inFlightID)
	}
}

func TestTranscriptEvictsOldestPastCap(t *testing.T) {
	tr := &transcript{}

	for i := 0; i < maxTranscriptMessages; i++ {
		tr.append(domain.Message{ID: fmt.Sprintf("u%d", i), Role: domain.MessageRoleUser, Content: "hi"})
	}
	tr.append(domain.Message{ID: "overflow", Role: domain.MessageRoleUser, Content: "hi"})

	msgs := tr.snapshot()
	if len(msgs) != maxTranscriptMessages {
		t.Fatalf("transcript length = %d, want %d", len(msgs), maxTranscriptMessages)
	}
	if msgs[0].ID != "u1" {
		t.Errorf("oldest surviving id = %q, want %q", msgs[0].ID, "u1")
	}
	if msgs[len(msgs)-1].ID != "overflow" {
		t.Errorf("newest id = %q, want %q", msgs[len(msgs)-1].ID, "overflow")
	}
}

func TestTranscriptEvictionKeepsInFlightMessageAddressable(t *testing.T) {
	tr := &transcript{}

	for i := 0; i < maxTranscriptMessages; i++ {
		tr.append(domain.Message{ID: fmt.Sprintf("u%d", i), Role: domain.MessageRoleUser, Content: "hi"})
	}

	// The new assistant message pushes the window past the cap; tokens must
	// still land on it after the front eviction.
	tr.applyToken("m1", "Hello", false)
	tr.applyToken("m1", " again", false)

	msgs := tr.snapshot()
	if len(msgs) != maxTranscriptMessages {
		t.Fatalf("transcript length = %d, want %d", len(msgs), maxTranscriptMessages)
	}
	last := msgs[len(msgs)-1]
	if last.ID != "m1" || last.Content != "Hello again" {
		t.Fatalf("in-flight message = %q/%q, want m1/%q", last.ID, last.Content, "Hello again")
	}
}

func TestTranscriptDropsDuplicateIDs(t *testing.T) {
	tr := &transcript{}

	tr.append(domain.Message{ID: "u1", Role: domain.MessageRoleUser, Content: "first"})
	tr.append(domain.Message{ID: "u1", Role: domain.MessageRoleUser, Content: "second"})

	msgs := tr.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected duplicate id to be dropped, transcript length = %d", len(msgs))
	}
	if msgs[0].Content != "first" {
		t.Errorf("content = %q, want the original %q", msgs[0].Content, "first")
	}
}

func TestTranscriptSnapshotIsACopy(t *testing.T) {
	tr := &transcript{}
	tr.append(domain.Message{ID: "u1", Role: domain.MessageRoleUser, Content: "hi"})

	snap := tr.snapshot()
	snap[0].Content = "mutated"

	if got := tr.snapshot()[0].Content; got != "hi" {
		t.Fatalf("mutating a snapshot leaked into the transcript: content = %q", got)
	}
}
