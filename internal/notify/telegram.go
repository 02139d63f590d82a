package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications through the Bot API sendMessage call.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender with a 10s HTTP timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		baseURL: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// telegramText renders an alert as Bot API HTML. Reason codes and game ids
// carry underscores, which Markdown mode would read as italics, so the text is
// HTML-escaped instead.
func telegramText(a Alert) string {
	icon, _ := badge(a.Event)
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>", icon, html.EscapeString(a.Title))
	if a.Message != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(a.Message))
	}
	if a.Event != "" {
		fmt.Fprintf(&b, "\n<code>%s</code>", html.EscapeString(a.Event))
	}
	return b.String()
}

// Send posts the alert to the configured chat. Error alerts are sent with
// sound; auction outcomes are silent.
func (t *TelegramSender) Send(ctx context.Context, a Alert) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     telegramText(a),
		"parse_mode":               "HTML",
		"disable_notification":     a.Event != EventError,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}
