package history

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Chat history errors
var (
	ErrNotPending = errors.New("[history] message is not pending")
)

const DefaultCapacity = 14

// ConversationHistory is bounded ordered record of one chat.
// Pending messages are hidden from the finalized view until marked finalized.
// Single mutex serializes every operation, never held across network calls.
type ConversationHistory struct {
	mu       sync.Mutex
	capacity int
	entries  []Snapshot
	pending  map[int64]struct{}
}

func New(capacity int) *ConversationHistory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ConversationHistory{
		capacity: capacity,
		entries:  make([]Snapshot, 0, capacity+1),
		pending:  make(map[int64]struct{}),
	}
}

// Add appends message at tail evicting the oldest entry over capacity
func (h *ConversationHistory) Add(s Snapshot, pending bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, s)
	h.evict()
	if pending {
		h.pending[s.ID] = struct{}{}
	}
}

// AddAfter inserts message right after anchor.
// Returns false without changes if anchor is absent.
func (h *ConversationHistory) AddAfter(
	anchorID int64, s Snapshot, pending bool,
) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.indexOf(anchorID)
	if idx < 0 {
		return false
	}

	h.entries = append(h.entries, Snapshot{})
	copy(h.entries[idx+2:], h.entries[idx+1:])
	h.entries[idx+1] = s
	h.evict()

	if pending {
		h.pending[s.ID] = struct{}{}
	}
	return true
}

// MarkFinalized moves message from pending to finalized exactly once
func (h *ConversationHistory) MarkFinalized(id int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pending[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotPending, id)
	}
	delete(h.pending, id)
	return nil
}

// FinalizedView returns copy of non-pending entries in order
func (h *ConversationHistory) FinalizedView() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	view := make([]Snapshot, 0, len(h.entries))
	for _, s := range h.entries {
		if _, ok := h.pending[s.ID]; !ok {
			view = append(view, s)
		}
	}
	return view
}

// Remove hard-deletes message and its pending mark
func (h *ConversationHistory) Remove(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.pending, id)

	idx := h.indexOf(id)
	if idx < 0 {
		return false
	}
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
	return true
}

// IsPending reports whether message awaits finalization
func (h *ConversationHistory) IsPending(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.pending[id]
	return ok
}

func (h *ConversationHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *ConversationHistory) Capacity() int {
	return h.capacity
}

// String dumps every entry including pending ones
func (h *ConversationHistory) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sb strings.Builder
	for _, s := range h.entries {
		_, pending := h.pending[s.ID]
		sb.WriteString(s.Dump(pending))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Drops head entries over capacity. Caller holds lock.
func (h *ConversationHistory) evict() {
	if over := len(h.entries) - h.capacity; over > 0 {
		clear(h.entries[:over])
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
}

// Caller holds lock
func (h *ConversationHistory) indexOf(id int64) int {
	for i, s := range h.entries {
		if s.ID == id {
			return i
		}
	}
	return -1
}
