package messaging

import (
	"errors"
	"fmt"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messaging errors
var (
	ErrDirectReplyFailed   = errors.New("[messaging] direct reply failed")
	ErrIndirectReplyFailed = errors.New("[messaging] indirect reply failed")
	ErrEditFailed          = errors.New("[messaging] edit failed")
	ErrDocumentFailed      = errors.New("[messaging] document send failed")
)

// Template for formatting replied line and reply text on second try
const ReplyDeletedT = "> '%s'\n\n%s"

// API is the part of tg.BotAPI used by bot
type API interface {
	Send(c tg.Chattable) (tg.Message, error)
	Request(c tg.Chattable) (*tg.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Reply tries twice: as reply, then as separate message quoting replied line
func Reply(
	api API, chatID int64, replyTo int64, quote string, text string,
) (tg.Message, error) {
	// Get and set message config
	m := tg.NewMessage(chatID, text)
	m.ReplyToMessageID = int(replyTo)

	// Try to reply with reply
	response, err := api.Send(m)
	if err == nil {
		return response, nil
	}
	directErr := fmt.Errorf("%w: %v", ErrDirectReplyFailed, err)

	// Try to reply with separate message
	m.ReplyToMessageID = 0
	if quote != "" {
		m.Text = fmt.Sprintf(ReplyDeletedT, quote, text)
	}
	response, err = api.Send(m)
	if err != nil {
		return tg.Message{}, errors.Join(
			directErr, fmt.Errorf("%w: %v", ErrIndirectReplyFailed, err),
		)
	}
	return response, nil
}

// Edit replaces text of sent message
func Edit(api API, chatID int64, messageID int64, text string) error {
	edit := tg.NewEditMessageText(chatID, int(messageID), text)
	if _, err := api.Send(edit); err != nil {
		return fmt.Errorf("%w: %v", ErrEditFailed, err)
	}
	return nil
}

// SendDocument replies with in-memory file
func SendDocument(
	api API, chatID int64, replyTo int64, name string, data []byte, caption string,
) (tg.Message, error) {
	doc := tg.NewDocument(chatID, tg.FileBytes{Name: name, Bytes: data})
	doc.ReplyToMessageID = int(replyTo)
	doc.Caption = caption

	response, err := api.Send(doc)
	if err != nil {
		return tg.Message{}, fmt.Errorf("%w: %v", ErrDocumentFailed, err)
	}
	return response, nil
}
