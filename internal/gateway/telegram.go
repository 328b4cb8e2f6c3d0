package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/starford/muninn/internal/apperr"
)

// Telegram sends messages to a fixed chat via the Telegram Bot API.
type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  *slog.Logger
}

// NewTelegram creates a Telegram gateway. With an empty token or zero chat
// ID the gateway is constructed in unconfigured mode: the daemon still runs
// and scans, and every Send short-circuits to ErrNoCredentials without a
// network call.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		log.Warn("telegram credentials not configured, deliveries will fail until set")
		return &Telegram{log: log}, nil
	}

	// Send-only bot: no poller, and Offline skips the getMe call so a
	// temporarily unreachable API does not prevent startup.
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: init telegram bot: %w", err)
	}
	return &Telegram{bot: b, chat: tele.ChatID(chatID), log: log}, nil
}

// Send delivers text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.bot == nil {
		return apperr.ErrNoCredentials
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(t.chat, text); err != nil {
		return fmt.Errorf("gateway: telegram send: %w", err)
	}
	t.log.Debug("telegram message sent", slog.Int64("chat_id", int64(t.chat)))
	return nil
}
