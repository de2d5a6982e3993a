package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts alerts to one chat through the Bot API sendMessage
// method.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat ID
// with a 10-second HTTP timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// telegramReply is the Bot API envelope. Failed calls carry a description.
type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

var telegramEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// telegramText renders the alert in legacy Markdown: a bold title, the
// message and one line per field with the value in code style.
func telegramText(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s", telegramEscaper.Replace(a.Title), telegramEscaper.Replace(a.Message))
	for _, f := range a.Fields {
		fmt.Fprintf(&b, "\n%s: `%s`", telegramEscaper.Replace(f.Name), strings.ReplaceAll(f.Value, "`", "'"))
	}
	return b.String()
}

// Send delivers a. A non-2xx reply is reported with the Bot API's
// description when it sends one.
func (t *TelegramSender) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  telegramText(a),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode %s: %w", a.Event, err)
	}

	endpoint := t.apiBase + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the bot token, so the transport error is not wrapped.
		return fmt.Errorf("telegram: send %s: request failed", a.Event)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var reply telegramReply
	if json.Unmarshal(raw, &reply) == nil && reply.Description != "" {
		return fmt.Errorf("telegram: send %s: status %d: %s", a.Event, resp.StatusCode, reply.Description)
	}
	return fmt.Errorf("telegram: send %s: status %d: %s", a.Event, resp.StatusCode, strings.TrimSpace(string(raw)))
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string { return "telegram" }
