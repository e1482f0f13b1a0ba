// Package notify pushes upload batch summaries to a Telegram chat. Purely
// best effort: a dead bot token must never fail an upload.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/g2commons/g2commons/internal/config"
	"github.com/g2commons/g2commons/internal/models"
)

type Notifier struct {
	cfg config.TelegramConfig
}

func New(cfg config.TelegramConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

// UploadSummary reports a finished batch. Failures are swallowed.
func (n *Notifier) UploadSummary(results []models.UploadResult) {
	if !n.cfg.Enabled {
		return
	}
	send(n.cfg.BotToken, n.cfg.ChatID, BuildSummary(results))
}

// BuildSummary renders the batch outcome as a Markdown message.
func BuildSummary(results []models.UploadResult) string {
	if len(results) == 0 {
		return ""
	}

	succeeded := 0
	var failed []models.UploadResult
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed = append(failed, r)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*G2Commons upload finished*: %d/%d succeeded", succeeded, len(results))
	for _, r := range failed {
		name := r.Filename
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "\n• %s failed: %s", name, r.Error)
	}
	return b.String()
}

// send delivers a one-off message without a running bot instance.
func send(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}
