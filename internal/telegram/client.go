// Package telegram publishes generated setlists to a Telegram chat.
// Messages use MarkdownV2 and delivery is retried with a linear backoff.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

// sender is the part of *tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create Telegram bot")
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, eris.Wrap(err, "invalid chat ID")
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		sleep:          sleepCtx,
	}, nil
}

// Send posts a generated setlist to the configured chat.
func (c *Client) Send(ctx context.Context, p *models.Prediction) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(p))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			logger.Info("Sent prediction %s to Telegram", p.ID)
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)

		if i+1 < c.maxRetries {
			if err := c.sleep(ctx, c.retryDelayBase*time.Duration(i+1)); err != nil {
				return eris.Wrap(err, "telegram send interrupted")
			}
		}
	}

	return eris.Wrapf(lastErr, "failed to send message after %d retries", c.maxRetries)
}

// formatMessage renders a prediction as a numbered MarkdownV2 list.
func formatMessage(p *models.Prediction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🎤 *Predicted setlist: %s*\n", escapeMarkdownV2(p.ArtistName))
	fmt.Fprintf(&b, "📅 Generated: %s\n", escapeMarkdownV2(p.GeneratedAt.Format("2006-01-02 15:04:05")))
	fmt.Fprintf(&b, "📊 Based on %d shows\n\n", p.ShowCount)

	for i, song := range p.Songs {
		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(song))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the escape character itself
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
