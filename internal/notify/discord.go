package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
)

const (
	colorRed    = 0xE74C3C // config errors
	colorOrange = 0xE67E22 // reconnect required

	defaultDiscordTimeout = 10 * time.Second
)

// ErrRateLimited is returned when Discord answers 429.
var ErrRateLimited = errors.New("discord rate limited (429)")

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultDiscordTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendAccountAlert posts the alert as a single Discord embed.
func (d *DiscordNotifier) SendAccountAlert(ctx context.Context, alert AccountAlert) error {
	payload := discordWebhookPayload{Embeds: []discordEmbed{buildEmbed(&alert)}}

	start := time.Now()
	err := d.post(ctx, payload)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationFailuresTotal.Inc()
		return err
	}
	metrics.NotificationsSentTotal.WithLabelValues(string(alert.Kind)).Inc()
	return nil
}

func buildEmbed(alert *AccountAlert) discordEmbed {
	name := alert.AccountName
	if name == "" {
		name = alert.AccountID
	}

	embed := discordEmbed{
		Description: alert.Message,
		Fields: []discordEmbedField{
			{Name: "Account", Value: name, Inline: true},
			{Name: "Account ID", Value: alert.AccountID, Inline: true},
		},
	}
	if alert.ErrorCode != "" {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name: "Error Code", Value: alert.ErrorCode, Inline: true,
		})
	}
	if !alert.OccurredAt.IsZero() {
		embed.Timestamp = alert.OccurredAt.UTC().Format(time.RFC3339)
	}

	switch alert.Kind {
	case KindConfigError:
		embed.Title = "Token configuration error"
		embed.Color = colorRed
	default:
		embed.Title = fmt.Sprintf("eBay account needs reconnect: %s", name)
		embed.Color = colorOrange
	}

	return embed
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
