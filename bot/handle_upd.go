package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"persona-handler/conf"
	"persona-handler/logging"
	"persona-handler/messaging"
	"persona-handler/translator"
)

const (
	commandTranslate = "translate"
	logFilename      = "verbose_log.txt"
)

// Handles separate update
func (b *Bot) handleUpdate(ctx context.Context, upd tg.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}

	// Get and validate message info
	info, err := messaging.NewMessageInfo(b.self, msg)
	if err != nil {
		b.logger.Debug("message skipped", logging.Err(err))
		return
	}
	logger := b.logger.With(
		logging.ChatID(info.Chat.ID),
		logging.MessageID(info.ID),
		logging.UserName(info.Sender),
	)

	// Admit or explain denial
	adm := b.admitter.Admit(info)
	if adm.Denial != messaging.DenialNone {
		b.deny(info, adm.Denial, logger)
		return
	}
	info.Text = adm.Text
	logger.Info("got message")

	switch {
	case info.Command == commandTranslate:
		b.translate(ctx, info, logger)
	case adm.ViewLog:
		b.sendLog(info, logger)
	default:
		b.respond(ctx, info, adm.Verbose, logger)
	}
}

// Silently ignores unaddressed messages, answers the rest
func (b *Bot) deny(
	info *messaging.MessageInfo, d messaging.Denial, logger *logging.Logger,
) {
	if d == messaging.DenialNotAddressed {
		return
	}
	b.metrics.Denied(d.String())
	logger.Info("message denied", logging.Denial(d.String()))

	var text string
	switch d {
	case messaging.DenialRateLimited:
		text = b.text(conf.LangRateLimited)
	case messaging.DenialTooLong:
		text = b.text(conf.LangTooLong)
	default:
		return
	}
	b.replyTo(info, text, logger)
}

// Replies with cached verbose log of earlier reply
func (b *Bot) sendLog(info *messaging.MessageInfo, logger *logging.Logger) {
	id, err := messaging.ParseLogID(info.Text, info.ReplyToID)
	if err != nil {
		b.replyTo(info, fill(b.text(conf.LangInvalidLogID), "{error}", err.Error()), logger)
		return
	}

	rendered, ok := b.logs.Get(id)
	if !ok {
		b.replyTo(info, b.text(conf.LangNoLog), logger)
		return
	}

	caption := fill(b.text(conf.LangLogAttached), "{id}", strconv.FormatInt(id, 10))
	_, err = messaging.SendDocument(
		b.api, info.Chat.ID, info.ID, logFilename, []byte(rendered), caption,
	)
	if err != nil {
		logger.Error("failed to send log", logging.Err(err))
	}
}

// Translates command argument or replied message
func (b *Bot) translate(
	ctx context.Context, info *messaging.MessageInfo, logger *logging.Logger,
) {
	if b.translator == nil {
		return
	}

	text := info.CommandArgs
	if text == "" {
		text = info.ReplyText
	}

	res, err := b.translator.Translate(ctx, text)
	switch {
	case errors.Is(err, translator.ErrSameLanguage):
		b.replyTo(info, b.text(conf.LangTranslateNothing), logger)
		return
	case err != nil:
		logger.Warn("translation failed", logging.Err(err))
		b.replyTo(info, b.text(conf.LangTranslateNothing), logger)
		return
	}

	logger.Debug("translated", logging.Lang(res.From))
	b.replyTo(info, fmt.Sprintf("[%s → %s] %s", res.From, res.To, res.Text), logger)
}

func (b *Bot) replyTo(
	info *messaging.MessageInfo, text string, logger *logging.Logger,
) {
	if _, err := messaging.Reply(
		b.api, info.Chat.ID, info.ID, info.Line(), text,
	); err != nil {
		logger.Error("failed to reply", logging.Err(err))
	}
}
