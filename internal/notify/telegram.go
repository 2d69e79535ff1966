package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Ops posts operational events (settled payments, expiry sweeps) to a
// Telegram chat. With no token configured it degrades to a no-op, so the
// rest of the system never has to check.
type Ops struct {
	bot    *telego.Bot
	chatID int64
}

func NewOps(token string, chatID int64) (*Ops, error) {
	if token == "" || chatID == 0 {
		return &Ops{}, nil
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Ops{bot: bot, chatID: chatID}, nil
}

func (o *Ops) Notify(ctx context.Context, format string, args ...any) {
	if o == nil || o.bot == nil {
		return
	}
	text := fmt.Sprintf(format, args...)
	if _, err := o.bot.SendMessage(ctx, tu.Message(tu.ID(o.chatID), text)); err != nil {
		slog.Warn("failed to send ops notification", "error", err)
	}
}
