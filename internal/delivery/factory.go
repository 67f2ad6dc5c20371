package delivery

import (
	"context"
	"fmt"
	"io"

	"github.com/scrypster/lifecache/internal/breaker"
	"github.com/scrypster/lifecache/internal/config"
)

// New builds the channel selected by cfg.Channel. External channels are
// wrapped with a rate limiter and a circuit breaker.
func New(ctx context.Context, cfg config.DeliveryConfig) (Channel, error) {
	var ch Channel
	switch cfg.Channel {
	case "", "log":
		if cfg.LogPath == "" {
			return nil, fmt.Errorf("%w: log channel requires log_path", config.ErrInvalidConfig)
		}
		return NewLogChannel(cfg.LogPath), nil
	case "slack":
		ch = NewSlackChannel(cfg.SlackToken, cfg.SlackChannel, cfg.SlackAPIURL)
	case "discord":
		d, err := NewDiscordChannel(cfg.DiscordWebhookURL)
		if err != nil {
			return nil, err
		}
		ch = d
	case "redis":
		r, err := NewRedisChannel(ctx, cfg.RedisURL, cfg.RedisStream)
		if err != nil {
			return nil, err
		}
		ch = r
	default:
		return nil, fmt.Errorf("%w: unknown delivery channel %q", config.ErrInvalidConfig, cfg.Channel)
	}

	timeout, err := cfg.BreakerOpenTimeout()
	if err != nil {
		return nil, err
	}
	guarded := NewBreaker(ch, breaker.Config{
		MaxFailures: uint32(cfg.BreakerMaxFailures),
		Timeout:     timeout,
	})
	return &closingChannel{
		Channel: NewRateLimited(guarded, cfg.RatePerSecond, cfg.RateBurst),
		inner:   ch,
	}, nil
}

// closingChannel keeps the underlying variant reachable for Close after
// wrapping.
type closingChannel struct {
	Channel
	inner Channel
}

func (c *closingChannel) Close() error {
	if cl, ok := c.inner.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Close releases resources held by ch, if any.
func Close(ch Channel) error {
	if cl, ok := ch.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
