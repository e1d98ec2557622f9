package lastfm

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/earworms/pkg/logger"
)

// Defaults for the recent-tracks client.
const (
	DefaultBaseURL    = "https://ws.audioscrobbler.com/2.0/"
	DefaultPageSize   = 200
	DefaultRatePerSec = 4
	DefaultRetries    = 3
	DefaultTimeout    = 30 * time.Second
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithPageSize sets the number of tracks requested per page (1..200).
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageSize {
			c.pageSize = n
		}
	}
}

// WithRatePerSecond limits outbound requests. Zero or less disables limiting.
func WithRatePerSecond(perSec float64) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithRetry sets how often a failed page is retried and the wait between attempts.
func WithRetry(count int, wait time.Duration) Option {
	return func(c *Client) {
		if count >= 0 {
			c.retries = count
		}
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
