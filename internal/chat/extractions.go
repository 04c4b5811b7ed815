package chat

import (
	"github.com/myflowhq/flowsync/internal/domain"
)

// extractionStore holds flows the assistant proposed mid-stream until the
// user accepts or dismisses them. The set is replaced wholesale and cleared
// wholesale; it is never partially applied. The sequence number lets a slow
// accept or dismiss detect that a newer populate arrived while its network
// work was in flight, so the latest populate always wins.
type extractionStore struct {
	pending []domain.Flow
	visible bool
	seq     uint64
}

// populate replaces the pending set and raises the notification flag.
func (e *extractionStore) populate(flows []domain.Flow) {
	e.pending = append([]domain.Flow(nil), flows...)
	e.visible = true
	e.seq++
}

// take returns a copy of the pending set together with the sequence number
// to pass to clearIf once the accept or dismiss work has been issued.
func (e *extractionStore) take() ([]domain.Flow, uint64) {
	return append([]domain.Flow(nil), e.pending...), e.seq
}

// clearIf clears the set and the notification flag unless a newer populate
// has replaced it since the matching take.
func (e *extractionStore) clearIf(seq uint64) {
	if e.seq != seq {
		return
	}
	e.clear()
}

// clear unconditionally drops the pending set and the notification flag.
func (e *extractionStore) clear() {
	e.pending = nil
	e.visible = false
	e.seq++
}

// mergeFlows appends pending flows to current, skipping ids already in the
// list, and returns a fresh slice.
func mergeFlows(current, pending []domain.Flow) []domain.Flow {
	merged := append([]domain.Flow(nil), current...)
	seen := make(map[string]struct{}, len(current))
	for _, f := range current {
		seen[f.ID] = struct{}{}
	}
	for _, f := range pending {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		merged = append(merged, f)
	}
	return merged
}
