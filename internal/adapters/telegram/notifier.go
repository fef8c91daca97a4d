// Package telegram delivers generated newsletters to the editors' channel.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// maxMessageLength is the Telegram hard limit on message size.
const maxMessageLength = 4096

// Notifier sends newsletters to a Telegram channel.
type Notifier struct {
	api       *tgbotapi.BotAPI
	channelID int64
}

// NewNotifier creates a Telegram notifier.
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	return &Notifier{api: bot, channelID: cfg.ChannelID}, nil
}

// SendNewsletter sends the rendered newsletter to the channel, splitting it
// into chunks that fit the Telegram message limit.
func (n *Notifier) SendNewsletter(newsletter *models.Newsletter) error {
	markdown := newsletter.ToMarkdown()

	for i, chunk := range splitMessage(markdown, maxMessageLength) {
		msg := tgbotapi.NewMessage(n.channelID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.DisableWebPagePreview = true

		if _, err := n.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send newsletter chunk %d: %w", i+1, err)
		}
	}

	logger.Info("newsletter delivered to telegram",
		zap.Int64("channel_id", n.channelID),
		zap.Int("length", len(markdown)),
	)
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring to
// break on line boundaries so sections stay intact.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
