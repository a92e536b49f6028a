package history

import (
	"fmt"
	"time"
)

// Snapshot is one exchanged message, never mutated after creation
type Snapshot struct {
	Text  string    // Speaker-tagged text
	Nick  string    // Display name of author
	IsBot bool      // Authored by bot
	ID    int64     // Unique within chat
	Sent  time.Time // Send time
}

func NewSnapshot(
	id int64, nick string, text string, isBot bool, sent time.Time,
) Snapshot {
	return Snapshot{
		Text:  text,
		Nick:  nick,
		IsBot: isBot,
		ID:    id,
		Sent:  sent,
	}
}

// Tag prefixes text with send time and speaker: "[16/10 12:00:00 by nick] text"
func Tag(nick string, text string, sent time.Time) string {
	return fmt.Sprintf("[%s by %s] %s", sent.Format("02/01 15:04:05"), nick, text)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("[%s] %s: %s", s.Sent.Format("2006-01-02 15:04:05"), s.Nick, s.Text)
}

// Dump describes snapshot with id and role for verbose logs
func (s Snapshot) Dump(pending bool) string {
	var pendingS, botS string
	if pending {
		pendingS = "(PENDING)"
	}
	if s.IsBot {
		botS = "(BOT)"
	}
	return fmt.Sprintf(
		"%s[ID %d | %s] <%s%s> %s",
		pendingS, s.ID, s.Sent.Format(time.RFC3339), s.Nick, botS, s.Text,
	)
}
