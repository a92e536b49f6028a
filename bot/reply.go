package bot

import (
	"context"
	"fmt"

	"persona-handler/chunker"
	"persona-handler/conf"
	"persona-handler/history"
	"persona-handler/logging"
	"persona-handler/messaging"
	"persona-handler/metrics"
	"persona-handler/responder"
)

// Answers message in chat.
// Trigger stays pending until reply is delivered and recorded.
func (b *Bot) respond(
	ctx context.Context,
	info *messaging.MessageInfo,
	verbose bool,
	logger *logging.Logger,
) {
	var (
		chatID  = info.Chat.ID
		h       = b.histories.Get(chatID)
		trigger = info.Snapshot()
	)

	// Record trigger hidden from generation
	h.Add(trigger, true)

	// Placeholder is edited into first chunk later
	placeholder, err := messaging.Reply(
		b.api, chatID, info.ID, info.Line(), b.text(conf.LangBotTyping),
	)
	if err != nil {
		logger.Error("failed to send placeholder", logging.Err(err))
		h.Remove(trigger.ID)
		b.metrics.Response(metrics.OutcomeError)
		return
	}
	placeholderID := int64(placeholder.MessageID)

	// Type until reply
	stopTyping := b.startTyping(ctx, chatID)
	resp, err := b.generate(ctx, info, trigger, h.FinalizedView(), logger)
	stopTyping()

	// Partial logs of failed invocations stay inspectable
	if resp != nil && resp.Log != nil {
		b.logs.Put(placeholderID, resp.Log.Render())
	}
	if err != nil {
		b.fail(chatID, placeholderID, h, trigger, err, logger)
		return
	}

	segments, err := chunker.Split(
		resp.Text, b.profile.Options.ChunkSize, b.text(conf.LangDisclaimer),
	)
	if err != nil {
		b.fail(chatID, placeholderID, h, trigger, err, logger)
		return
	}
	if err := b.deliver(chatID, placeholderID, segments); err != nil {
		b.fail(chatID, placeholderID, h, trigger, err, logger)
		return
	}

	// Slot reply right after trigger, then reveal both
	sent := b.now()
	reply := history.NewSnapshot(
		placeholderID, b.self.Name, history.Tag(b.self.Name, resp.Text, sent), true, sent,
	)
	if !h.AddAfter(trigger.ID, reply, false) {
		h.Add(reply, false)
	}
	if err := h.MarkFinalized(trigger.ID); err != nil {
		logger.Error("failed to finalize trigger", logging.Err(err))
		b.metrics.Response(metrics.OutcomeError)
		return
	}

	// Only finalized exchanges are remembered
	b.memorize(ctx, chatID, trigger, logger)
	b.memorize(ctx, chatID, reply, logger)

	if verbose {
		b.attachLog(chatID, placeholderID, resp.Log.Render(), logger)
	}
	for _, s := range resp.Signals {
		if text := b.notice(s); text != "" {
			b.replyTo(info, text, logger)
		}
	}

	b.metrics.Response(metrics.OutcomeOK)
	logger.Info("replied",
		logging.Chunks(len(segments)),
		logging.Model(resp.Model),
		logging.Invocation(resp.InvocationID),
	)
}

// Resolves attachments and runs the pipeline
func (b *Bot) generate(
	ctx context.Context,
	info *messaging.MessageInfo,
	trigger history.Snapshot,
	view []history.Snapshot,
	logger *logging.Logger,
) (*responder.Response, error) {
	// Unreadable attachments are dropped
	atts, err := messaging.Resolve(ctx, b.api, b.http, info.Attachments)
	if err != nil {
		logger.Warn("failed to resolve attachments", logging.Err(err))
		atts = nil
	}

	return b.responder.CreateResponse(ctx, responder.Trigger{
		ChatID:      info.Chat.ID,
		Message:     trigger,
		Attachments: atts,
		Restricted:  b.profile.IsRestricted(info.Chat.ID),
	}, view)
}

// First segment replaces placeholder, others follow as replies
func (b *Bot) deliver(chatID int64, placeholderID int64, segments []string) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", messaging.ErrEditFailed)
	}
	if err := messaging.Edit(b.api, chatID, placeholderID, segments[0]); err != nil {
		return err
	}

	prev := placeholderID
	for _, seg := range segments[1:] {
		msg, err := messaging.Reply(b.api, chatID, prev, "", seg)
		if err != nil {
			return err
		}
		prev = int64(msg.MessageID)
	}

	b.metrics.ChunksSent(len(segments))
	return nil
}

// Forgets trigger and shows diagnostic in place of reply
func (b *Bot) fail(
	chatID int64,
	placeholderID int64,
	h *history.ConversationHistory,
	trigger history.Snapshot,
	err error,
	logger *logging.Logger,
) {
	logger.Error("failed to respond", logging.Err(err))
	h.Remove(trigger.ID)
	b.metrics.Response(metrics.OutcomeError)

	if err := messaging.Edit(b.api, chatID, placeholderID, b.errorText(err)); err != nil {
		logger.Error("failed to show error", logging.Err(err))
	}
}

func (b *Bot) attachLog(
	chatID int64, replyID int64, rendered string, logger *logging.Logger,
) {
	if rendered == "" {
		return
	}
	_, err := messaging.SendDocument(
		b.api, chatID, replyID, logFilename, []byte(rendered), "",
	)
	if err != nil {
		logger.Error("failed to attach log", logging.Err(err))
	}
}

func (b *Bot) memorize(
	ctx context.Context, chatID int64, s history.Snapshot, logger *logging.Logger,
) {
	if b.memory == nil {
		return
	}
	if err := b.memory.Memorize(ctx, chatID, s); err != nil {
		logger.Warn("failed to memorize", logging.Err(err))
	}
}

// Returns function stopping typing and waiting for it
func (b *Bot) startTyping(ctx context.Context, chatID int64) func() {
	typingCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.typer.Type(typingCtx, chatID)
	}()
	return func() {
		cancel()
		<-done
	}
}
