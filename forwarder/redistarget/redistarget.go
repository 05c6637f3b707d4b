// Package redistarget adapts the Redis pub/sub delivery pattern to a
// Forwarder Target: it publishes operator-facing text to a channel with
// exponential backoff.
package redistarget

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openclaw/conductor/forwarder"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "conductor:authorization"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub target.
type Config struct {
	// URL is the Redis connection URL (required). Format:
	// redis://[:password@]host:port[/db]
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
}

// Target publishes operator messages via Redis PUBLISH.
type Target struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub target from the given config.
func New(cfg Config) (*Target, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis target requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis target: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Target{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Send publishes text to the configured channel, retrying with
// exponential backoff on failure.
func (t *Target) Send(ctx context.Context, text string) error {
	var lastErr error
	attempts := 1 + t.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis target: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis target: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
		lastErr = t.client.Publish(publishCtx, t.config.Channel, text).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis target: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases target resources.
func (t *Target) Close() error {
	return t.client.Close()
}

var _ forwarder.Target = (*Target)(nil)
