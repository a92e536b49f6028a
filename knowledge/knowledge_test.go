package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-handler/history"
	"persona-handler/logging"
)

// Letter histogram embedder
type letterEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 27)
		v[26] = 0.01
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("word ", 10) // 50 runes
	chunks := ChunkText(text, 20, 5)
	require.Len(t, chunks, 3)

	assert.Equal(t, text[:20], chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], text[15:20]), "overlap with previous slot")
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 20+5+4)
	}
}

func TestChunkTextKeepsWords(t *testing.T) {
	chunks := ChunkText("alpha beta gamma", 8, 0)
	assert.Equal(t, []string{"alpha beta", "beta gamma"}, chunks)

	assert.Nil(t, ChunkText("", 10, 2))
	assert.Equal(t, []string{"short"}, ChunkText("short", DefaultChunkSize, DefaultOverlap))
}

func TestMemoryStoreRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: 1, Text: "x", Vector: []float32{1, 0}},
		{ID: 2, Text: "y", Vector: []float32{0, 1}},
		{ID: 3, Text: "xy", Vector: []float32{1, 1}},
	}))

	matches, err := s.Search(ctx, GlobalScope, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "x", matches[0].Text)
	assert.Equal(t, "xy", matches[1].Text)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	assert.ErrorIs(t, s.Upsert(ctx, []Entry{{ID: 4, Vector: []float32{1}}}), errDimMismatch)

	n, _ := s.Len(ctx)
	assert.Equal(t, 3, n)
}

func TestIndexRetrieve(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(&letterEmbedder{}, NewMemoryStore(), 2, logging.Discard())

	hits, err := idx.Retrieve(ctx, "anything")
	require.NoError(t, err)
	assert.Empty(t, hits, "empty index means nothing relevant")

	require.NoError(t, idx.IndexTexts(ctx, []string{"cats purr", "dogs bark", "zzz"}))
	hits, err = idx.Retrieve(ctx, "purring cats")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cats purr", hits[0].Text)
}

func TestIndexFolder(t *testing.T) {
	dir := t.TempDir()
	for i, body := range []string{"cats purr", strings.Repeat("long text ", 500), "dogs bark"} {
		name := filepath.Join(dir, string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(name, []byte(body), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("skip"), 0644))

	store := NewMemoryStore()
	idx := NewIndex(&letterEmbedder{}, store, 0, logging.Discard())

	n, err := idx.IndexFolder(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1+3+1, n, "5000 runes give three chunks")

	stored, _ := store.Len(context.Background())
	assert.Equal(t, n, stored)
}

func TestIndexFolderMissing(t *testing.T) {
	idx := NewIndex(&letterEmbedder{}, NewMemoryStore(), 0, logging.Discard())
	n, err := idx.IndexFolder(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexFolderEmbedFailureIsPerFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644))

	idx := NewIndex(&letterEmbedder{err: errors.New("quota")}, NewMemoryStore(), 0, logging.Discard())
	n, err := idx.IndexFolder(context.Background(), dir)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestLongTermMemory(t *testing.T) {
	ctx := context.Background()
	mem := NewLongTermMemory(&letterEmbedder{}, NewMemoryStore())

	texts, err := mem.Closest(ctx, 1, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, texts)

	t0 := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	require.NoError(t, mem.Memorize(ctx, 1, history.NewSnapshot(1, "ann", "I adore cats", false, t0)))
	require.NoError(t, mem.Memorize(ctx, 1, history.NewSnapshot(2, "bob", "rust borrow checker", false, t0)))
	require.NoError(t, mem.Memorize(ctx, 1, history.NewSnapshot(3, "ann", "cats again", false, t0)))

	texts, err = mem.Closest(ctx, 1, "cats", 2)
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.ElementsMatch(t, []string{"I adore cats", "cats again"}, texts)
}

func TestLongTermMemoryStaysInChat(t *testing.T) {
	ctx := context.Background()
	mem := NewLongTermMemory(&letterEmbedder{}, NewMemoryStore())
	t0 := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	// Private chat and group share message id
	require.NoError(t, mem.Memorize(ctx, 111, history.NewSnapshot(1, "ann", "my password is hunter2", false, t0)))
	require.NoError(t, mem.Memorize(ctx, -100, history.NewSnapshot(1, "bob", "dogs bark", false, t0)))

	texts, err := mem.Closest(ctx, -100, "password", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"dogs bark"}, texts)

	texts, err = mem.Closest(ctx, 222, "password", 3)
	require.NoError(t, err)
	assert.Empty(t, texts)

	texts, err = mem.Closest(ctx, 111, "password", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"my password is hunter2"}, texts)
}

func TestMemoryStoreSearchesOneScope(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: 1, Scope: 7, Text: "seven", Vector: []float32{1, 0}},
		{ID: 2, Scope: 8, Text: "eight", Vector: []float32{1, 0}},
		{ID: 3, Scope: GlobalScope, Text: "known", Vector: []float32{1, 0}},
	}))

	for scope, want := range map[int64]string{7: "seven", 8: "eight", GlobalScope: "known"} {
		matches, err := s.Search(ctx, scope, []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, want, matches[0].Text)
	}
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := OpenPGStore(ctx, dsn, "test_memories", 2)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.db.ExecContext(ctx, "TRUNCATE test_memories")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: 1, Scope: 5, Text: "x", Vector: []float32{1, 0}},
		{ID: 2, Scope: 5, Text: "y", Vector: []float32{0, 1}},
		{ID: 3, Scope: 6, Text: "other chat", Vector: []float32{1, 0}},
	}))
	matches, err := s.Search(ctx, 5, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "x", matches[0].Text)
	assert.Equal(t, "y", matches[1].Text)
}

func TestOpenPGStoreRejectsTableName(t *testing.T) {
	_, err := OpenPGStore(context.Background(), "postgres://unused", "bad;drop", 2)
	assert.ErrorIs(t, err, errBadTable)
}
