package delivery

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/scrypster/lifecache/pkg/types"
)

// SlackChannel posts deliveries to a Slack channel.
type SlackChannel struct {
	client  *slack.Client
	channel string
}

// NewSlackChannel creates a Slack channel. apiURL overrides the API base and
// may be empty.
func NewSlackChannel(token, channel, apiURL string) *SlackChannel {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackChannel{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

// Name implements Channel.
func (c *SlackChannel) Name() string { return "slack" }

// Deliver implements Channel.
func (c *SlackChannel) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	p := NewPayload(rec, report)
	opts := []slack.MsgOption{
		slack.MsgOptionText(p.Text(), false),
		slack.MsgOptionUsername("LifeCache"),
	}
	if _, _, err := c.client.PostMessageContext(ctx, c.channel, opts...); err != nil {
		return wrapError(c.Name(), rec, fmt.Errorf("slack send: %w", err))
	}
	return nil
}
