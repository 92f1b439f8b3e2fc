// Package telegram delivers unit alerts to a single Telegram chat through the
// Bot API, with retry on transient failures.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/notify"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client against the public Bot API.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, maxRetries, retryDelayBase,
		tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithEndpoint creates a client against a custom Bot API endpoint,
// in the "%s/%s" token/method format of tgbotapi.APIEndpoint.
func NewClientWithEndpoint(botToken, chatID string, maxRetries int, retryDelayBase time.Duration,
	endpoint string, httpClient *http.Client) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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
	}, nil
}

func (c *Client) Name() string { return "telegram" }

// Send delivers an alert for unit. Retries back off linearly and stop early
// when ctx is done.
func (c *Client) Send(ctx context.Context, unit models.Unit, msg notify.Message) error {
	out := tgbotapi.NewMessage(c.chatID, formatMessage(unit, msg))
	out.ParseMode = tgbotapi.ModeMarkdownV2
	out.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(out)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram send cancelled: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders an alert as MarkdownV2. Only the title is bold;
// every dynamic string is escaped.
func formatMessage(unit models.Unit, msg notify.Message) string {
	var b strings.Builder
	title := msg.Title
	if title == "" {
		title = unit.Name
	}
	fmt.Fprintf(&b, "🚨 *%s*\n\n", escape(title))
	for _, line := range msg.Lines {
		fmt.Fprintf(&b, "%s\n", escape(line))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}
