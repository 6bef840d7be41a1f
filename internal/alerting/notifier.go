package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers alert text to the notification sink. Delivery is
// fire-and-forget from the engine's point of view: callers log a
// returned error and move on.
type Notifier interface {
	Send(ctx context.Context, text string) error
	SendError(ctx context.Context, text string) error
}

// Telegram pushes messages through the Telegram Bot API. Reports go to
// the main chat as MarkdownV2; operational errors go to a separate
// channel as plain text.
type Telegram struct {
	botToken    string
	chatID      string
	errorChatID string
	baseURL     string
	client      *http.Client
	logger      zerolog.Logger
}

// NewTelegram constructs a Telegram notifier.
func NewTelegram(botToken, chatID, errorChatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Telegram{
		botToken:    botToken,
		chatID:      chatID,
		errorChatID: errorChatID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send pushes a MarkdownV2-escaped report to the main chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       escapeMarkdownV2(text),
		"parse_mode": "MarkdownV2",
	}

	if err := t.post(ctx, payload); err != nil {
		return err
	}

	t.logger.Info().Str("chat", t.chatID).Msg("alert sent")
	return nil
}

// SendError pushes plain text to the error channel.
func (t *Telegram) SendError(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": t.errorChatID,
		"text":    text,
	}

	if err := t.post(ctx, payload); err != nil {
		return err
	}

	t.logger.Info().Str("chat", t.errorChatID).Msg("error notice sent")
	return nil
}

func (t *Telegram) post(ctx context.Context, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	return nil
}

const (
	markdownEscaped = "\\[]()~>#+-={}.!\""
	markdownKept    = "*_"
)

// escapeMarkdownV2 backslash-escapes the MarkdownV2 control characters
// while keeping bold/italic markers intact.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, char := range text {
		if strings.ContainsRune(markdownEscaped, char) && !strings.ContainsRune(markdownKept, char) {
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}

	return b.String()
}

var _ Notifier = (*Telegram)(nil)
