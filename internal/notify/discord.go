package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colours per alert event.
var discordColors = map[string]int{
	EventAccountBreached: 0xE74C3C,
	EventStagePassed:     0x2ECC71,
	EventPayoutRequested: 0x3498DB,
}

const discordDefaultColor = 0x95A5A6

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordSender posts alerts to a Discord webhook as one embed each.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func discordEmbedFor(a Alert) discordEmbed {
	color, ok := discordColors[a.Event]
	if !ok {
		color = discordDefaultColor
	}
	e := discordEmbed{
		Title:       a.Title,
		Description: a.Message,
		Color:       color,
	}
	for _, f := range a.Fields {
		e.Fields = append(e.Fields, discordEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	if a.AccountID != "" {
		e.Footer = &discordFooter{Text: "account " + a.AccountID}
	}
	if !a.At.IsZero() {
		e.Timestamp = a.At.UTC().Format(time.RFC3339)
	}
	return e
}

// Send posts the alert to the webhook.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{discordEmbedFor(a)}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send %s: %w", a.Event, err)
	}
	defer resp.Body.Close()

	// 204 on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: send %s: status %d: %s", a.Event, resp.StatusCode, string(respBody))
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }
