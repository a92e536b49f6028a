package bot

import (
	"context"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Start handles updates until channel closes or context done.
// Returns after every running handler finished.
func (b *Bot) Start(ctx context.Context, updates <-chan tg.Update) {
	// Defer graceful shutdown
	defer b.logger.Info("bot shut down gracefully")
	defer b.wg.Wait()

	// Handle updates until updates end or context done
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("bot update channel closed")
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		case <-ctx.Done():
			b.logger.Info("bot received shutdown signal")
			return
		}
	}
}
