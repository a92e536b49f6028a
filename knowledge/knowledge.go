// Package knowledge embeds reference texts and past messages for similarity lookup.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"persona-handler/logging"
	"persona-handler/model"
	"persona-handler/steps"
)

const (
	DefaultLimit       = 5
	maxConcurrentFiles = 8
	embedBatch         = 64
)

// Knowledge errors
var (
	errEmbedFailed  = errors.New("failed to embed texts")
	errReadFailed   = errors.New("failed to read knowledge file")
	errNotDirectory = errors.New("knowledge path is not a directory")
)

// Index answers queries with ranked knowledge chunks
type Index struct {
	embedder model.Embedder
	store    VectorStore
	limit    int
	logger   *logging.Logger
}

func NewIndex(
	embedder model.Embedder, store VectorStore, limit int, logger *logging.Logger,
) *Index {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Index{
		embedder: embedder,
		store:    store,
		limit:    limit,
		logger:   logger,
	}
}

// IndexTexts embeds texts in batches and stores them
func (x *Index) IndexTexts(ctx context.Context, texts []string) error {
	return upsertTexts(ctx, x.embedder, x.store, GlobalScope, texts, textID)
}

// IndexFolder indexes every .txt file of dir, up to 8 files at once.
// Missing dir is skipped; failed files are logged and do not stop others.
func (x *Index) IndexFolder(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		x.logger.Warn("knowledge folder missing, skipping", logging.Path(dir))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", errNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !strings.HasSuffix(e.Name(), ".txt") {
			x.logger.Warn("not a .txt file, skipping", logging.Path(path))
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		x.logger.Info("nothing to index", logging.Path(dir))
		return 0, nil
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for _, path := range files {
		g.Go(func() error {
			n, err := x.indexFile(gctx, path)
			if err != nil {
				// Cancellation stops the group, other errors only this file
				if gctx.Err() != nil {
					return gctx.Err()
				}
				x.logger.Error("indexing failed", logging.Path(path), logging.Err(err))
				return nil
			}
			total.Add(int64(n))
			x.logger.Debug("file indexed", logging.Path(path), logging.Chunks(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}

	x.logger.Info(
		"knowledge indexed",
		logging.Files(len(files)),
		logging.Chunks(int(total.Load())),
	)
	return int(total.Load()), nil
}

func (x *Index) indexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errReadFailed, err)
	}
	chunks := ChunkText(string(data), DefaultChunkSize, DefaultOverlap)
	if err := x.IndexTexts(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Retrieve returns best hits for query, empty when index is empty
func (x *Index) Retrieve(ctx context.Context, query string) ([]steps.Hit, error) {
	matches, err := search(ctx, x.embedder, x.store, GlobalScope, query, x.limit)
	if err != nil {
		return nil, err
	}

	hits := make([]steps.Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, steps.Hit{Text: m.Text, Score: m.Score})
	}
	return hits, nil
}

// --- HELPERS ---

func upsertTexts(
	ctx context.Context,
	embedder model.Embedder,
	store VectorStore,
	scope int64,
	texts []string,
	id func(string) int64,
) error {
	for start := 0; start < len(texts); start += embedBatch {
		batch := texts[start:min(start+embedBatch, len(texts))]

		vectors, err := embedder.Embed(ctx, batch)
		if err != nil {
			return fmt.Errorf("%w: %v", errEmbedFailed, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf(
				"%w: got %d vectors for %d texts",
				errEmbedFailed, len(vectors), len(batch),
			)
		}

		entries := make([]Entry, 0, len(batch))
		for i, text := range batch {
			entries = append(entries, Entry{
				ID:     id(text),
				Scope:  scope,
				Text:   text,
				Vector: vectors[i],
			})
		}
		if err := store.Upsert(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

func search(
	ctx context.Context,
	embedder model.Embedder,
	store VectorStore,
	scope int64,
	query string,
	limit int,
) ([]Match, error) {
	if n, err := store.Len(ctx); err != nil || n == 0 {
		return nil, err
	}

	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEmbedFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: no query vector", errEmbedFailed)
	}
	return store.Search(ctx, scope, vectors[0], limit)
}

// Stable positive id of text
func textID(text string) int64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return int64(h.Sum64() & math.MaxInt64)
}
