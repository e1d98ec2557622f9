// Package spotify is the catalog and playlist boundary backed by the
// Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// Defaults for the API client.
const (
	DefaultRatePerSec       = 5
	DefaultFailureThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second

	playlistDescription = "Earworms detected from Last.fm listening history"
)

// Client resolves tracks and writes playlists. One Client is built per run
// and shared by the resolver and the publisher.
type Client struct {
	api     *spotify.Client
	breaker *gobreaker.CircuitBreaker[spotify.ID]
	limiter *rate.Limiter
	public  bool
	log     logger.Logger

	baseURL          string
	failureThreshold uint32
	breakerTimeout   time.Duration

	userOnce sync.Once
	userID   string
	userErr  error
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
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

// WithPublic controls the visibility of created playlists.
func WithPublic(public bool) Option {
	return func(c *Client) { c.public = public }
}

// WithBreaker sets how many consecutive search failures open the circuit
// and how long it stays open.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.failureThreshold = failures
		}
		if timeout > 0 {
			c.breakerTimeout = timeout
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

// NewClient wraps an authorized HTTP client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		limiter:          rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		public:           true,
		log:              logger.Nop(),
		failureThreshold: DefaultFailureThreshold,
		breakerTimeout:   DefaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	apiOpts := []spotify.ClientOption{spotify.WithRetry(true)}
	if c.baseURL != "" {
		apiOpts = append(apiOpts, spotify.WithBaseURL(c.baseURL))
	}
	c.api = spotify.New(httpClient, apiOpts...)

	c.breaker = gobreaker.NewCircuitBreaker[spotify.ID](gobreaker.Settings{
		Name:    "spotify_search",
		Timeout: c.breakerTimeout,
		// An abandoned search says nothing about the health of the API.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.failureThreshold
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, float64(to))
			c.log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("name", name),
				logger.String("state", to.String()),
			)
		},
	})
	return c
}

// Lookup searches for the best match of key. A search without results is
// not an error.
func (c *Client) Lookup(ctx context.Context, key model.TrackKey) (string, bool, error) {
	start := time.Now()
	id, err := c.breaker.Execute(func() (spotify.ID, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		query := fmt.Sprintf("track:%s artist:%s", key.Title, key.Artist)
		res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
		if err != nil {
			return "", err
		}
		if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
			return "", nil
		}
		return res.Tracks.Tracks[0].ID, nil
	})
	elapsed := time.Since(start).Seconds()

	switch {
	case errors.Is(err, context.Canceled):
		metrics.RecordCatalogLookup("cancelled", elapsed)
		return "", false, fmt.Errorf("search %s: %w", key, err)
	case err != nil:
		metrics.RecordCatalogLookup("error", elapsed)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordError("spotify", "circuit_open")
		}
		return "", false, fmt.Errorf("search %s: %w", key, err)
	case id == "":
		metrics.RecordCatalogLookup("missing", elapsed)
		return "", false, nil
	default:
		metrics.RecordCatalogLookup("found", elapsed)
		return string(id), true, nil
	}
}

// CreatePlaylist creates an empty playlist owned by the current user.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (string, error) {
	userID, err := c.currentUser(ctx)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	pl, err := c.api.CreatePlaylistForUser(ctx, userID, name, playlistDescription, c.public, false)
	if err != nil {
		metrics.RecordError("spotify", "create_playlist")
		return "", fmt.Errorf("create playlist %q: %w", name, err)
	}
	return string(pl.ID), nil
}

// AddItems appends tracks to a playlist in the given order. Callers keep
// batches within the API limit of 100.
func (c *Client) AddItems(ctx context.Context, playlistID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	tracks := make([]spotify.ID, len(ids))
	for i, id := range ids {
		tracks[i] = spotify.ID(id)
	}
	if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), tracks...); err != nil {
		metrics.RecordError("spotify", "add_items")
		return fmt.Errorf("add %d items to %s: %w", len(ids), playlistID, err)
	}
	return nil
}

func (c *Client) currentUser(ctx context.Context) (string, error) {
	c.userOnce.Do(func() {
		if err := c.limiter.Wait(ctx); err != nil {
			c.userErr = err
			return
		}
		u, err := c.api.CurrentUser(ctx)
		if err != nil {
			c.userErr = fmt.Errorf("current user: %w", err)
			return
		}
		c.userID = u.ID
	})
	return c.userID, c.userErr
}
