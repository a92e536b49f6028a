package knowledge

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"sync"
)

// Store errors
var (
	errDimMismatch = errors.New("vector dimension mismatch")
)

// Scope of knowledge texts; memories use their chat id
const GlobalScope int64 = 0

// Entry is one indexed text
type Entry struct {
	ID     int64
	Scope  int64
	Text   string
	Vector []float32
}

// Match is search result with cosine similarity score
type Match struct {
	ID    int64
	Text  string
	Score float64
}

// VectorStore keeps embedded texts.
// Search only sees entries of the given scope.
type VectorStore interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, scope int64, vector []float32, limit int) ([]Match, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore is in-process brute force cosine index
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]Entry
	dim     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry)}
}

func (s *MemoryStore) Upsert(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if s.dim == 0 {
			s.dim = len(e.Vector)
		}
		if len(e.Vector) != s.dim {
			return errDimMismatch
		}
		s.entries[e.ID] = e
	}
	return nil
}

// Search returns up to limit best matches of scope, ties broken by id
func (s *MemoryStore) Search(
	_ context.Context, scope int64, vector []float32, limit int,
) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, errDimMismatch
	}

	matches := make([]Match, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Scope != scope {
			continue
		}
		matches = append(matches, Match{
			ID:    e.ID,
			Text:  e.Text,
			Score: cosine(vector, e.Vector),
		})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return matches[:min(limit, len(matches))], nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
