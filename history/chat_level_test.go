package history

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

func snap(id int64, text string) Snapshot {
	return NewSnapshot(id, "user", text, false, t0.Add(time.Duration(id)*time.Second))
}

func ids(view []Snapshot) []int64 {
	out := make([]int64, 0, len(view))
	for _, s := range view {
		out = append(out, s.ID)
	}
	return out
}

func TestAddEvictsOldest(t *testing.T) {
	h := New(3)
	for id := range int64(5) {
		h.Add(snap(id+1, "m"), false)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []int64{3, 4, 5}, ids(h.FinalizedView()))
}

func TestPendingHiddenUntilFinalized(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(snap(1, "a"), false)
	h.Add(snap(2, "b"), true)

	assert.Equal(t, []int64{1}, ids(h.FinalizedView()))
	assert.True(t, h.IsPending(2))
	assert.Equal(t, 2, h.Len())

	require.NoError(t, h.MarkFinalized(2))
	assert.Equal(t, []int64{1, 2}, ids(h.FinalizedView()))
	assert.False(t, h.IsPending(2))
}

func TestMarkFinalizedTwiceFails(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(snap(1, "a"), true)

	require.NoError(t, h.MarkFinalized(1))
	err := h.MarkFinalized(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPending))

	assert.True(t, errors.Is(h.MarkFinalized(99), ErrNotPending))
}

func TestFailedFinalizeChangesNothing(t *testing.T) {
	h := New(3)
	h.Add(snap(1, "a"), false)
	h.Add(snap(2, "b"), true)
	h.Add(snap(3, "c"), false)
	require.NoError(t, h.MarkFinalized(2))
	h.Add(snap(4, "d"), true)

	view, n := h.FinalizedView(), h.Len()
	for _, id := range []int64{1, 2, 3, 99} {
		require.ErrorIs(t, h.MarkFinalized(id), ErrNotPending)
		assert.Equal(t, view, h.FinalizedView(), "id %d", id)
		assert.Equal(t, n, h.Len(), "id %d", id)
		assert.False(t, h.IsPending(id))
	}
	assert.True(t, h.IsPending(4))
}

// Plain slice replica of history semantics
type historyModel struct {
	capacity int
	entries  []int64
	pending  map[int64]bool
}

func (m *historyModel) insert(idx int, id int64, pending bool) {
	m.entries = slices.Insert(m.entries, idx, id)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = m.entries[over:]
	}
	if pending {
		m.pending[id] = true
	}
}

func (m *historyModel) view() []int64 {
	out := []int64{}
	for _, id := range m.entries {
		if !m.pending[id] {
			out = append(out, id)
		}
	}
	return out
}

func TestHistoryMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 14))

	for iter := range 200 {
		capacity := 1 + rng.IntN(6)
		h := New(capacity)
		m := &historyModel{capacity: capacity, pending: make(map[int64]bool)}
		nextID := int64(1)

		for op := range 60 {
			// Existing, evicted or never seen id
			pick := func() int64 {
				if len(m.entries) > 0 && rng.IntN(3) > 0 {
					return m.entries[rng.IntN(len(m.entries))]
				}
				return 1 + rng.Int64N(nextID+2)
			}

			switch rng.IntN(5) {
			case 0, 1:
				pending := rng.IntN(2) == 0
				h.Add(snap(nextID, "m"), pending)
				m.insert(len(m.entries), nextID, pending)
				nextID++
			case 2:
				anchor := pick()
				pending := rng.IntN(2) == 0
				idx := slices.Index(m.entries, anchor)
				ok := h.AddAfter(anchor, snap(nextID, "m"), pending)
				require.Equal(t, idx >= 0, ok, "iter %d op %d", iter, op)
				if ok {
					m.insert(idx+1, nextID, pending)
					nextID++
				}
			case 3:
				id := pick()
				err := h.MarkFinalized(id)
				if m.pending[id] {
					require.NoError(t, err, "iter %d op %d", iter, op)
					delete(m.pending, id)
				} else {
					require.ErrorIs(t, err, ErrNotPending, "iter %d op %d", iter, op)
				}
			case 4:
				id := pick()
				removed := h.Remove(id)
				require.Equal(t, slices.Contains(m.entries, id), removed, "iter %d op %d", iter, op)
				m.entries = slices.DeleteFunc(m.entries, func(e int64) bool { return e == id })
				delete(m.pending, id)
			}

			require.LessOrEqual(t, h.Len(), capacity, "iter %d op %d", iter, op)
			require.Equal(t, len(m.entries), h.Len(), "iter %d op %d", iter, op)
			require.Equal(t, m.view(), ids(h.FinalizedView()), "iter %d op %d", iter, op)
			for _, id := range m.entries {
				require.Equal(t, m.pending[id], h.IsPending(id), "iter %d op %d id %d", iter, op, id)
			}
		}
	}
}

func TestAddAfterKeepsConversationOrder(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(snap(1, "A"), false)
	h.Add(snap(3, "C"), false)

	require.True(t, h.AddAfter(1, snap(2, "B"), false))
	assert.Equal(t, []int64{1, 2, 3}, ids(h.FinalizedView()))

	assert.False(t, h.AddAfter(42, snap(4, "D"), false))
	assert.Equal(t, 3, h.Len())
}

func TestAddAfterAtTailAndEviction(t *testing.T) {
	h := New(2)
	h.Add(snap(1, "A"), false)
	h.Add(snap(2, "B"), false)

	require.True(t, h.AddAfter(2, snap(3, "C"), false))
	assert.Equal(t, []int64{2, 3}, ids(h.FinalizedView()))
}

func TestPendingMarkSurvivesEviction(t *testing.T) {
	h := New(1)
	h.Add(snap(1, "trigger"), true)
	h.Add(snap(2, "other"), false)

	assert.Equal(t, []int64{2}, ids(h.FinalizedView()))
	assert.NoError(t, h.MarkFinalized(1), "pending id finalizes even after eviction")
}

func TestRemove(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(snap(1, "a"), false)
	h.Add(snap(2, "b"), true)

	assert.True(t, h.Remove(2))
	assert.False(t, h.IsPending(2))
	assert.False(t, h.Remove(2))
	assert.Equal(t, []int64{1}, ids(h.FinalizedView()))
}

func TestFinalizedViewIsCopy(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(snap(1, "a"), false)

	view := h.FinalizedView()
	view[0].Text = "changed"
	assert.Equal(t, "a", h.FinalizedView()[0].Text)
}

func TestConcurrentAccess(t *testing.T) {
	h := New(50)

	var wg sync.WaitGroup
	for w := range int64(8) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range int64(100) {
				id := w*1000 + i
				h.Add(snap(id, "m"), true)
				_ = h.FinalizedView()
				_ = h.MarkFinalized(id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, h.Len())
	assert.Len(t, h.FinalizedView(), 50)
}

func TestStringDumpsPending(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add(NewSnapshot(1, "ann", "hi", false, t0), true)
	h.Add(NewSnapshot(2, "bot", "hello", true, t0), false)

	dump := h.String()
	assert.Contains(t, dump, "(PENDING)[ID 1 | 2026-02-13T12:00:00Z] <ann> hi")
	assert.Contains(t, dump, "[ID 2 | 2026-02-13T12:00:00Z] <bot(BOT)> hello")
}

func TestTag(t *testing.T) {
	assert.Equal(t, "[13/02 12:00:00 by ann] hi", Tag("ann", "hi", t0))
}
