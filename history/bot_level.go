package history

import (
	"slices"
	"sync"
)

const storeCap = 256

// Store holds one conversation history per chat.
// Histories are created lazily and never replaced.
type Store struct {
	mu       sync.RWMutex
	capacity int
	chats    map[int64]*ConversationHistory
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		chats:    make(map[int64]*ConversationHistory, storeCap),
	}
}

// Get returns chat history creating it on first use
func (s *Store) Get(chatID int64) *ConversationHistory {
	// Happy path: return existing chat history
	if h, ok := s.get(chatID); ok {
		return h
	}

	// Unhappy path: return new chat history
	return s.init(chatID)
}

// Lookup returns chat history only if it exists
func (s *Store) Lookup(chatID int64) (*ConversationHistory, bool) {
	return s.get(chatID)
}

// Chats returns known chat ids in ascending order
func (s *Store) Chats() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) get(chatID int64) (*ConversationHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.chats[chatID]
	return h, ok
}

func (s *Store) init(chatID int64) *ConversationHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double check if init after lock release
	if h, ok := s.chats[chatID]; ok {
		return h
	}

	h := New(s.capacity)
	s.chats[chatID] = h
	return h
}
