package delivery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/scrypster/lifecache/pkg/types"
)

// webhookExecutor is the part of *discordgo.Session the channel needs.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordChannel posts deliveries through a Discord webhook.
type DiscordChannel struct {
	session   webhookExecutor
	webhookID string
	token     string
}

// NewDiscordChannel creates a channel for a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscordChannel(webhookURL string) (*DiscordChannel, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot identity.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordChannel{session: session, webhookID: id, token: token}, nil
}

// Name implements Channel.
func (c *DiscordChannel) Name() string { return "discord" }

// Deliver implements Channel.
func (c *DiscordChannel) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	p := NewPayload(rec, report)
	params := &discordgo.WebhookParams{
		Content:  truncateRunes(p.Text(), 2000),
		Username: "LifeCache",
	}
	if _, err := c.session.WebhookExecute(c.webhookID, c.token, true, params, discordgo.WithContext(ctx)); err != nil {
		return wrapError(c.Name(), rec, fmt.Errorf("discord webhook execute: %w", err))
	}
	return nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: missing id and token in %q", u.Path)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
