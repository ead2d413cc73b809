package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/domain"

	tgbot "github.com/go-telegram/bot"
)

// TelegramSink posts alert summaries to a Telegram chat.
// Params: bot client and destination chat id.
// Returns: optional distribution channel for operator chats.
type TelegramSink struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSink creates telegram sink from channel config.
// Params: telegram channel settings.
// Returns: initialized sink; init errors surface on first delivery.
func NewTelegramSink(cfg config.TelegramChannelConfig) *TelegramSink {
	sink := &TelegramSink{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sink.initErr = errors.New("telegram bot token is required")
		return sink
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sink.initErr = errors.New("telegram chat_id is required")
		return sink
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(base, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sink.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sink
	}
	sink.client = botClient
	return sink
}

// Name returns sink channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSink) Name() string {
	return "telegram"
}

// Accepts reports whether sink wants this alert.
// Params: alert snapshot.
// Returns: true; the telegram channel receives every alert.
func (s *TelegramSink) Accepts(domain.Alert) bool {
	return true
}

// Deliver posts one alert summary to the configured chat.
// Params: context and alert snapshot.
// Returns: transport or API error.
func (s *TelegramSink) Deliver(ctx context.Context, alert domain.Alert) error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.client == nil {
		return errors.New("telegram client is not initialized")
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: s.chatID,
		Text:   alert.Summary(),
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
