package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender posts alert text into a Telegram group or channel. The
// channel config carries the target under "chat_id", either a numeric group
// id or an @channelname.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func NewTelegramSender(log *slog.Logger, botToken string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{
		bot:    bot,
		logger: log.With(slog.String("component", "escalate.telegram")),
	}, nil
}

func (s *TelegramSender) Kind() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, ch Channel, text string) error {
	target := strings.TrimSpace(ch.Config["chat_id"])
	if target == "" {
		return fmt.Errorf("telegram channel has no chat_id")
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(target, "@") {
		msg = tgbotapi.NewMessageToChannel(target, text)
	} else {
		chatID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram chat_id must be @channel or numeric id: %w", err)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	s.logger.Debug("telegram message sent", slog.String("chat_id", target))
	return nil
}
