package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jesposito/walkabout/db"
)

const ntfyShURL = "https://ntfy.sh"

// message is the provider-neutral alert payload.
type message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
	URL      string
	Label    string
}

func (n *Notifier) send(ctx context.Context, s *db.UserSettings, msg message) error {
	switch s.NotifyProvider {
	case ProviderNtfySelfHosted:
		return n.sendNtfy(ctx, s.NtfyServerURL, s.NtfyTopic, msg)
	case ProviderNtfySh:
		return n.sendNtfy(ctx, ntfyShURL, s.NtfyTopic, msg)
	case ProviderDiscord:
		return n.sendDiscord(ctx, s.DiscordWebhookURL, msg)
	case ProviderNone, "":
		return nil
	default:
		return fmt.Errorf("unknown notification provider %q", s.NotifyProvider)
	}
}

// sendNtfy posts the body as plain text; everything else rides in headers.
func (n *Notifier) sendNtfy(ctx context.Context, server, topic string, msg message) error {
	if server == "" || topic == "" {
		return fmt.Errorf("ntfy provider is not configured")
	}
	url := strings.TrimRight(server, "/") + "/" + topic

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", url, []byte(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", string(msg.Priority))
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.URL != "" {
		req.Header.Set("Actions", fmt.Sprintf("view, %s, %s", msg.Label, msg.URL))
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	URL         string `json:"url,omitempty"`
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

func (n *Notifier) sendDiscord(ctx context.Context, webhookURL string, msg message) error {
	if webhookURL == "" {
		return fmt.Errorf("discord provider is not configured")
	}
	payload := discordPayload{
		Content: msg.Title,
		Embeds: []discordEmbed{{
			Title:       msg.Title,
			Description: msg.Body,
			Color:       discordColor(msg.Priority),
			URL:         msg.URL,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}
	return nil
}

func discordColor(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 0xE74C3C
	case PriorityHigh:
		return 0xE67E22
	default:
		return 0x3498DB
	}
}
