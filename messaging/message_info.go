package messaging

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"persona-handler/history"
)

// Message info errors
var (
	errMsgNil         = errors.New("nil message")
	errMsgEmptySender = errors.New("empty sender of message")
	errMsgEmptyText   = errors.New("empty text of message")
)

// Self is bot identity used to detect addressing
type Self struct {
	ID       int64
	UserName string // without "@"
	Name     string // persona name substituted for mentions
}

func NewSelf(u tg.User, name string) Self {
	if name == "" {
		name = u.FirstName
	}
	return Self{ID: u.ID, UserName: u.UserName, Name: name}
}

// MessageInfo is transport-neutral view of inbound message
type MessageInfo struct {
	ID     int64
	UserID int64
	Sender string // UserName | FirstName (+LastName)
	Text   string // Text | Caption with bot mentions humanized
	Sent   time.Time
	Chat   ChatInfo

	ReplyToID   int64
	ReplyText   string
	IsReplied   bool // replies to bot
	IsMentioned bool
	Command     string // without "/" and "@bot"
	CommandArgs string

	Attachments []Attachment
}

// Constructs message info and detects whether bot is addressed
func NewMessageInfo(self Self, msg *tg.Message) (*MessageInfo, error) {
	if msg == nil {
		return nil, errMsgNil
	}

	var (
		sender      = getSender(msg)
		text        = getText(msg)
		attachments = attachmentsOf(msg)
	)

	// Handle empty sender and text
	if sender == "" {
		return nil, errMsgEmptySender
	}
	if text == "" && len(attachments) == 0 {
		return nil, errMsgEmptyText
	}

	m := &MessageInfo{
		ID:          int64(msg.MessageID),
		Sender:      sender,
		Sent:        msg.Time(),
		Chat:        NewChatInfo(msg, sender),
		Attachments: attachments,
	}
	if msg.From != nil {
		m.UserID = msg.From.ID
	}

	if replied := msg.ReplyToMessage; replied != nil {
		m.ReplyToID = int64(replied.MessageID)
		m.ReplyText = getText(replied)
		m.IsReplied = replied.From != nil && replied.From.ID == self.ID
	}

	// Commands addressed to other bots are ignored
	if msg.IsCommand() {
		cmd, at, _ := strings.Cut(msg.CommandWithAt(), "@")
		if at == "" || strings.EqualFold(at, self.UserName) {
			m.Command = strings.ToLower(cmd)
			m.CommandArgs = strings.TrimSpace(msg.CommandArguments())
		}
	}

	m.IsMentioned, m.Text = humanizeMention(self, text)
	return m, nil
}

// IsAddressed reports message meant for bot
func (m *MessageInfo) IsAddressed() bool {
	return m.Chat.IsPrivate || m.IsReplied || m.IsMentioned || m.Command != ""
}

// Line is speaker-tagged text stored in history
func (m *MessageInfo) Line() string {
	return history.Tag(displayName(m.Sender), m.Text, m.Sent)
}

// Snapshot of message for history
func (m *MessageInfo) Snapshot() history.Snapshot {
	return history.NewSnapshot(m.ID, m.Sender, m.Line(), false, m.Sent)
}

func (m *MessageInfo) String() string {
	return fmt.Sprintf("%d/%d %s: %s", m.Chat.ID, m.ID, m.Sender, m.Text)
}

// Gets UserName | FirstName (+LastName)
func getSender(msg *tg.Message) string {
	if msg.From == nil {
		if msg.SenderChat != nil {
			return msg.SenderChat.Title
		}
		return ""
	}
	return msg.From.String()
}

// Gets Text | Caption
func getText(msg *tg.Message) (text string) {
	if msg.Text != "" {
		text = msg.Text
	}
	if msg.Caption != "" {
		text = msg.Caption
	}
	return strings.TrimSpace(text)
}

// Substitutes bot's @username with persona name
func humanizeMention(self Self, text string) (bool, string) {
	if self.UserName == "" {
		return false, text
	}
	re := regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(self.UserName) + `\b`)
	if !re.MatchString(text) {
		return false, text
	}
	return true, strings.TrimSpace(re.ReplaceAllLiteralString(text, self.Name))
}

// Titleizes sender for speaker tags
func displayName(sender string) string {
	return cases.Title(language.English, cases.NoLower).String(sender)
}
