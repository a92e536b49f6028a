package history

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshot field keys
const (
	keyChats    = "chats"
	keyChatID   = "chat_id"
	keyMessages = "messages"
	keyText     = "text"
	keyNick     = "nick"
	keyIsBot    = "is_bot"
	keyID       = "id"
	keySent     = "sent"
)

var (
	errMalformed = errors.New("malformed history snapshot")
)

// --- ADAPTERS ---

// Convert finalized views -> Proto
func (s *Store) toProto() (*structpb.Struct, error) {
	chats := make([]any, 0)
	for _, chatID := range s.Chats() {
		h, _ := s.Lookup(chatID)

		view := h.FinalizedView()
		messages := make([]any, 0, len(view))
		for _, snap := range view {
			messages = append(messages, snapshotToMap(snap))
		}

		chats = append(chats, map[string]any{
			keyChatID:   strconv.FormatInt(chatID, 10),
			keyMessages: messages,
		})
	}

	return structpb.NewStruct(map[string]any{keyChats: chats})
}

// Convert Proto -> Go internal
func fromProto(root *structpb.Struct, capacity int) (*Store, error) {
	s := NewStore(capacity)

	for _, chatV := range root.GetFields()[keyChats].GetListValue().GetValues() {
		chat := chatV.GetStructValue()
		if chat == nil {
			return nil, fmt.Errorf("%w: chat is not a struct", errMalformed)
		}
		fields := chat.GetFields()

		chatID, err := strconv.ParseInt(fields[keyChatID].GetStringValue(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chat id: %v", errMalformed, err)
		}

		h := s.Get(chatID)
		for _, msgV := range fields[keyMessages].GetListValue().GetValues() {
			snap, err := snapshotFromStruct(msgV.GetStructValue())
			if err != nil {
				return nil, err
			}
			h.Add(snap, false)
		}
	}

	return s, nil
}

// --- HELPERS ---

func snapshotToMap(s Snapshot) map[string]any {
	return map[string]any{
		keyText:  s.Text,
		keyNick:  s.Nick,
		keyIsBot: s.IsBot,
		keyID:    strconv.FormatInt(s.ID, 10),
		keySent:  s.Sent.UTC().Format(time.RFC3339Nano),
	}
}

func snapshotFromStruct(st *structpb.Struct) (Snapshot, error) {
	if st == nil {
		return Snapshot{}, fmt.Errorf("%w: message is not a struct", errMalformed)
	}
	fields := st.GetFields()

	id, err := strconv.ParseInt(fields[keyID].GetStringValue(), 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: message id: %v", errMalformed, err)
	}
	sent, err := time.Parse(time.RFC3339Nano, fields[keySent].GetStringValue())
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: sent: %v", errMalformed, err)
	}

	return Snapshot{
		Text:  fields[keyText].GetStringValue(),
		Nick:  fields[keyNick].GetStringValue(),
		IsBot: fields[keyIsBot].GetBoolValue(),
		ID:    id,
		Sent:  sent,
	}, nil
}
