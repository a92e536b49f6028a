package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"persona-handler/logging"
	"persona-handler/ratelimit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var self = Self{ID: 99, UserName: "ava_bot", Name: "Ava"}

const date = 1770984000 // 2026-02-13 12:00:00 UTC

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tg.Chattable
	requests []tg.Chattable
	failures int // Send calls to fail first
	fileURL  string
}

func (f *fakeAPI) Send(c tg.Chattable) (tg.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.failures > 0 {
		f.failures--
		return tg.Message{}, errors.New("bad request: message to reply not found")
	}
	return tg.Message{MessageID: 1000 + len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tg.Chattable) (*tg.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tg.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func groupMessage(text string) *tg.Message {
	return &tg.Message{
		MessageID: 10,
		From:      &tg.User{ID: 5, UserName: "ann"},
		Date:      date,
		Chat:      &tg.Chat{ID: -100, Type: "supergroup", Title: "Cats"},
		Text:      text,
	}
}

func command(text string, length int) *tg.Message {
	msg := groupMessage(text)
	msg.Entities = []tg.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	return msg
}

func TestMentionIsHumanized(t *testing.T) {
	m, err := NewMessageInfo(self, groupMessage("@Ava_Bot what about cats?"))
	require.NoError(t, err)

	assert.True(t, m.IsMentioned)
	assert.True(t, m.IsAddressed())
	assert.Equal(t, "Ava what about cats?", m.Text)
	assert.Equal(t, int64(-100), m.Chat.ID)
	assert.Equal(t, "Cats", m.Chat.Title)
	assert.Equal(t, int64(5), m.UserID)

	snap := m.Snapshot()
	assert.Equal(t, int64(10), snap.ID)
	assert.False(t, snap.IsBot)
	assert.True(t, strings.HasSuffix(snap.Text, "by Ann] Ava what about cats?"), snap.Text)
}

func TestUnaddressedGroupMessage(t *testing.T) {
	m, err := NewMessageInfo(self, groupMessage("just chatting"))
	require.NoError(t, err)
	assert.False(t, m.IsAddressed())
}

func TestReplyToBot(t *testing.T) {
	msg := groupMessage("and dogs?")
	msg.ReplyToMessage = &tg.Message{MessageID: 9, From: &tg.User{ID: self.ID, IsBot: true}}

	m, err := NewMessageInfo(self, msg)
	require.NoError(t, err)
	assert.True(t, m.IsReplied)
	assert.Equal(t, int64(9), m.ReplyToID)
	assert.True(t, m.IsAddressed())
}

func TestCommands(t *testing.T) {
	m, err := NewMessageInfo(self, command("/translate@ava_bot hallo welt", 18))
	require.NoError(t, err)
	assert.Equal(t, "translate", m.Command)
	assert.Equal(t, "hallo welt", m.CommandArgs)

	other, err := NewMessageInfo(self, command("/translate@other_bot hallo", 20))
	require.NoError(t, err)
	assert.Empty(t, other.Command)
	assert.False(t, other.IsAddressed())
}

func TestPrivateChat(t *testing.T) {
	msg := groupMessage("hello")
	msg.Chat = &tg.Chat{ID: 5, Type: "private"}

	m, err := NewMessageInfo(self, msg)
	require.NoError(t, err)
	assert.True(t, m.Chat.IsPrivate)
	assert.Equal(t, "ann's private", m.Chat.Title)
	assert.True(t, m.IsAddressed())
}

func TestMessageWithoutText(t *testing.T) {
	msg := groupMessage("")
	_, err := NewMessageInfo(self, msg)
	assert.ErrorIs(t, err, errMsgEmptyText)

	msg.Photo = []tg.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	m, err := NewMessageInfo(self, msg)
	require.NoError(t, err)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "large", m.Attachments[0].FileID)

	_, err = NewMessageInfo(self, nil)
	assert.ErrorIs(t, err, errMsgNil)
}

func TestAdmit(t *testing.T) {
	clock := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(func() time.Time { return clock },
		ratelimit.Window{N: 2, Span: time.Minute},
	)
	a := NewAdmitter(limiter, 20, func(id int64) bool { return id == -100 })

	info := func(text string, chatID int64) *MessageInfo {
		m, err := NewMessageInfo(self, groupMessage(text))
		require.NoError(t, err)
		m.Chat.ID = chatID
		return m
	}

	assert.Equal(t, DenialNotAddressed, a.Admit(info("no mention", -100)).Denial)
	assert.Equal(t, DenialNotAllowed, a.Admit(info("@ava_bot hi", -200)).Denial)

	ok := a.Admit(info("@ava_bot hi --v", -100))
	assert.Equal(t, DenialNone, ok.Denial)
	assert.True(t, ok.Verbose)
	assert.Equal(t, "Ava hi", ok.Text)

	long := a.Admit(info("@ava_bot "+strings.Repeat("x", 30), -100))
	assert.Equal(t, DenialTooLong, long.Denial)

	// Third addressed message within window breaks n=2
	assert.Equal(t, DenialRateLimited, a.Admit(info("@ava_bot again", -100)).Denial)
	assert.Equal(t, "rate_limited", DenialRateLimited.String())
}

func TestParseFlags(t *testing.T) {
	clean, viewLog, verbose := ParseFlags("Ava --l 1234")
	assert.Equal(t, "Ava 1234", clean)
	assert.True(t, viewLog)
	assert.False(t, verbose)

	clean, viewLog, verbose = ParseFlags("tell me a joke --v ")
	assert.Equal(t, "tell me a joke", clean)
	assert.False(t, viewLog)
	assert.True(t, verbose)

	_, _, verbose = ParseFlags("--v in the middle")
	assert.False(t, verbose)
}

func TestParseFlagsNeedsWholeWords(t *testing.T) {
	for _, text := range []string{
		"Ava show --list of cats",
		"Ava --lol that was funny",
		"Ava rate limit--l",
		"Ava make it pop--v",
	} {
		clean, viewLog, verbose := ParseFlags(text)
		assert.Equal(t, text, clean)
		assert.False(t, viewLog, text)
		assert.False(t, verbose, text)
	}

	clean, viewLog, _ := ParseFlags("Ava --list --l 12")
	assert.Equal(t, "Ava --list 12", clean)
	assert.True(t, viewLog)
}

func TestParseLogID(t *testing.T) {
	id, err := ParseLogID("Ava 1234", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)

	id, err = ParseLogID("Ava", 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	_, err = ParseLogID("Ava please", 0)
	assert.ErrorIs(t, err, ErrBadLogRequest)
	assert.Contains(t, err.Error(), "Ava please")
}

func TestReplyFallsBackToQuote(t *testing.T) {
	api := &fakeAPI{failures: 1}

	_, err := Reply(api, -100, 10, "[..] Ann: hi", "hello")
	require.NoError(t, err)
	require.Len(t, api.sent, 2)

	first := api.sent[0].(tg.MessageConfig)
	assert.Equal(t, 10, first.ReplyToMessageID)

	second := api.sent[1].(tg.MessageConfig)
	assert.Equal(t, 0, second.ReplyToMessageID)
	assert.Equal(t, "> '[..] Ann: hi'\n\nhello", second.Text)
}

func TestReplyBothFail(t *testing.T) {
	api := &fakeAPI{failures: 2}

	_, err := Reply(api, -100, 10, "", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirectReplyFailed)
	assert.ErrorIs(t, err, ErrIndirectReplyFailed)
}

func TestEditAndDocument(t *testing.T) {
	api := &fakeAPI{}

	require.NoError(t, Edit(api, -100, 1001, "done"))
	edit := api.sent[0].(tg.EditMessageTextConfig)
	assert.Equal(t, "done", edit.Text)
	assert.Equal(t, 1001, edit.MessageID)

	_, err := SendDocument(api, -100, 10, "verbose_log.txt", []byte("log"), "caption")
	require.NoError(t, err)
	doc := api.sent[1].(tg.DocumentConfig)
	assert.Equal(t, "caption", doc.Caption)
	assert.Equal(t, 10, doc.ReplyToMessageID)
}

func TestResolveEmbedsSingleImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(png)
	}))
	defer srv.Close()
	api := &fakeAPI{fileURL: srv.URL + "/file/bot123/photo.jpg"}

	atts, err := Resolve(context.Background(), api, srv.Client(), []Attachment{
		{FileID: "f1", ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(png), atts[0].URL)
	assert.True(t, atts[0].IsImage())
}

func TestResolveSkipsDownloadForSeveral(t *testing.T) {
	api := &fakeAPI{fileURL: "http://127.0.0.1:1/never"}

	atts, err := Resolve(context.Background(), api, nil, []Attachment{
		{FileID: "a", ContentType: "image/jpeg"},
		{FileID: "b", ContentType: "application/pdf", Filename: "doc.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Empty(t, atts[0].URL)
	assert.Equal(t, "doc.pdf", atts[1].Filename)
}

func TestResolveRejectsLargeFile(t *testing.T) {
	_, err := Resolve(context.Background(), &fakeAPI{}, nil, []Attachment{
		{FileID: "a", ContentType: "image/png", Size: MaxAttachmentBytes + 1},
	})
	assert.ErrorIs(t, err, errFileTooLarge)
}

func TestTypeStopsOnCancel(t *testing.T) {
	api := &fakeAPI{}
	typer := NewTyper(api, 5*time.Millisecond, time.Minute, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		typer.Type(ctx, -100)
	}()

	require.Eventually(t, func() bool { return api.requestCount() >= 3 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done

	api.mu.Lock()
	defer api.mu.Unlock()
	action, ok := api.requests[0].(tg.ChatActionConfig)
	require.True(t, ok)
	assert.Equal(t, tg.ChatTyping, action.Action)
}

func TestTypeGivesUp(t *testing.T) {
	api := &fakeAPI{}
	typer := NewTyper(api, time.Hour, 20*time.Millisecond, logging.Discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		typer.Type(context.Background(), -100)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("typing did not stop")
	}
	assert.Equal(t, 1, api.requestCount())
}
