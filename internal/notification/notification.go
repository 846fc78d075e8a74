// Package notification delivers push alerts for lifecycle events,
// signals, and order outcomes.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Provider delivers one notification to a single backend.
type Provider interface {
	Name() string
	Send(title, body string) error
}

// Manager fans notifications out to all configured providers. Delivery
// is fire-and-forget; provider failures are logged, never propagated.
type Manager struct {
	providers []Provider
	log       zerolog.Logger
}

// NewManager creates a manager over the given providers.
func NewManager(log zerolog.Logger, providers ...Provider) *Manager {
	return &Manager{providers: providers, log: log}
}

// HasProviders reports whether any backend is configured.
func (m *Manager) HasProviders() bool {
	return len(m.providers) > 0
}

// Notify sends title/body to every provider. Structured data is appended
// to the body as formatted lines.
func (m *Manager) Notify(title, body string, data map[string]interface{}) {
	if len(m.providers) == 0 {
		return
	}

	message := body
	if len(data) > 0 {
		var b strings.Builder
		b.WriteString(body)
		for k, v := range data {
			fmt.Fprintf(&b, "\n%s: %v", k, v)
		}
		message = b.String()
	}

	for _, p := range m.providers {
		go func(p Provider) {
			if err := p.Send(title, message); err != nil {
				m.log.Warn().Err(err).Str("provider", p.Name()).Msg("notification delivery failed")
			}
		}(p)
	}
}

// TelegramProvider posts messages through the Telegram bot API.
type TelegramProvider struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramProvider returns nil when token or chat id is missing.
func NewTelegramProvider(botToken, chatID string) *TelegramProvider {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &TelegramProvider{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *TelegramProvider) Name() string { return "telegram" }

func (p *TelegramProvider) Send(title, body string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", p.botToken)

	resp, err := p.client.PostForm(endpoint, url.Values{
		"chat_id": {p.chatID},
		"text":    {fmt.Sprintf("*%s*\n%s", title, body)},
	})
	if err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// DiscordProvider posts messages to a Discord webhook.
type DiscordProvider struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordProvider returns nil when the webhook URL is missing.
func NewDiscordProvider(webhookURL string) *DiscordProvider {
	if webhookURL == "" {
		return nil
	}
	return &DiscordProvider{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *DiscordProvider) Name() string { return "discord" }

func (p *DiscordProvider) Send(title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, body),
	})
	if err != nil {
		return fmt.Errorf("error encoding discord payload: %w", err)
	}

	resp, err := p.client.Post(p.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error sending discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
