package telegram

import (
	"context"

	"github.com/go-telegram/bot"

	"telegram-send/internal/config"
	"telegram-send/internal/logger"
)

// Deleter is the subset of the Bot API used for message deletion.
type Deleter interface {
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// Delete removes previously sent messages by id, best effort. The Bot API
// only allows deleting messages from the last 48 hours. A failed id is
// logged as a warning and the rest of the batch still runs.
func Delete(ctx context.Context, api Deleter, settings *config.Settings, messageIDs []int) {
	for _, id := range messageIDs {
		_, err := api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    settings.ChatID,
			MessageID: id,
		})
		if err != nil {
			logger.L().Warnf("Deleting message with id=%d failed: %v", id, err)
		}
	}
}
