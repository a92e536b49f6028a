package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"persona-handler/logging"
)

// Typing errors
var (
	ErrSignalFailed = errors.New("[messaging] signal request failed")
)

// Telegram shows chat action for about five seconds
const (
	DefaultTypingInterval = 4 * time.Second
	DefaultMaxTyping      = 3 * time.Minute
)

// Typer repeats chat action while reply is generated.
// Signals stop after maxTyping even if reply never comes.
type Typer struct {
	api       API
	interval  time.Duration
	maxTyping time.Duration
	logger    *logging.Logger
}

// NewTyper with zero durations uses defaults
func NewTyper(
	api API, interval time.Duration, maxTyping time.Duration, logger *logging.Logger,
) *Typer {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	if maxTyping <= 0 {
		maxTyping = DefaultMaxTyping
	}
	return &Typer{api: api, interval: interval, maxTyping: maxTyping, logger: logger}
}

// Type sends typing action until context done or time is up
func (t *Typer) Type(ctx context.Context, chatID int64) {
	t.Act(ctx, chatID, tg.ChatTyping)
}

// Act sends action right away and then on every interval
func (t *Typer) Act(ctx context.Context, chatID int64, action string) {
	ctx, cancel := context.WithTimeout(ctx, t.maxTyping)
	defer cancel()

	logger := t.logger.With(logging.ChatID(chatID))
	t.send(chatID, action, logger)

	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			t.send(chatID, action, logger)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Warn("typing gave up", logging.Duration(t.maxTyping))
			}
			return
		}
	}
}

func (t *Typer) send(chatID int64, action string, logger *logging.Logger) {
	if _, err := t.api.Request(tg.NewChatAction(chatID, action)); err != nil {
		logger.Warn("chat action failed",
			logging.Err(fmt.Errorf("%w for <%s>: %v", ErrSignalFailed, action, err)),
		)
	}
}
