package knowledge

import (
	"context"
	"strconv"

	"persona-handler/history"
	"persona-handler/model"
)

// LongTermMemory remembers every message beyond history capacity.
// Messages are recalled only within the chat they were sent in.
type LongTermMemory struct {
	embedder model.Embedder
	store    VectorStore
}

func NewLongTermMemory(embedder model.Embedder, store VectorStore) *LongTermMemory {
	return &LongTermMemory{embedder: embedder, store: store}
}

// Memorize stores message of chat
func (m *LongTermMemory) Memorize(
	ctx context.Context, chatID int64, s history.Snapshot,
) error {
	id := textID(strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(s.ID, 10))
	return upsertTexts(ctx, m.embedder, m.store, chatID, []string{s.Text},
		func(string) int64 { return id },
	)
}

// Closest returns texts of up to n messages of chat nearest to query
func (m *LongTermMemory) Closest(
	ctx context.Context, chatID int64, query string, n int,
) ([]string, error) {
	matches, err := search(ctx, m.embedder, m.store, chatID, query, n)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, match.Text)
	}
	return texts, nil
}
