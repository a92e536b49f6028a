package messaging

import (
	"fmt"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatInfo stores chat's ID, title and type
type ChatInfo struct {
	ID        int64
	Title     string
	IsPrivate bool
}

func NewChatInfo(msg *tg.Message, sender string) ChatInfo {
	// Channel posts and some service messages have no chat
	if msg.Chat == nil {
		var id int64
		if msg.From != nil {
			id = msg.From.ID
		}
		return ChatInfo{ID: id, Title: chatTitle("", sender, true), IsPrivate: true}
	}

	isPrivate := msg.Chat.IsPrivate()
	return ChatInfo{
		ID:        msg.Chat.ID,
		Title:     chatTitle(msg.Chat.Title, sender, isPrivate),
		IsPrivate: isPrivate,
	}
}

// Gets chat title for public and private chats
func chatTitle(title string, sender string, isPrivate bool) string {
	if isPrivate || title == "" {
		return fmt.Sprintf("%s's private", sender)
	}
	return title
}
