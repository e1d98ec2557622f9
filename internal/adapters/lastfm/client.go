// Package lastfm downloads a user's scrobble history through the Last.fm
// user.getRecentTracks API.
package lastfm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// Client pages through recent tracks. It is safe for sequential use by one
// fetch at a time.
type Client struct {
	http      *resty.Client
	apiKey    string
	baseURL   string
	pageSize  int
	retries   int
	retryWait time.Duration
	timeout   time.Duration
	limiter   *rate.Limiter
	log       logger.Logger
}

// New constructs a client for apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		pageSize:  DefaultPageSize,
		retries:   DefaultRetries,
		retryWait: time.Second,
		timeout:   DefaultTimeout,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetTimeout(c.timeout).
		SetRetryCount(c.retries).
		SetRetryWaitTime(c.retryWait).
		SetRetryMaxWaitTime(4 * c.retryWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return c, nil
}

// Fetch returns the complete listening history of user in chronological
// order. The currently playing track has no timestamp and is skipped.
func (c *Client) Fetch(ctx context.Context, user string) ([]model.PlayEvent, error) {
	if user == "" {
		return nil, ErrMissingUser
	}

	var events []model.PlayEvent
	for page, total := 1, 1; page <= total; page++ {
		rt, err := c.page(ctx, user, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		total = rt.Attr.pages()

		for _, t := range rt.Tracks {
			if t.Attr.NowPlaying == "true" || t.Date.UTS == "" {
				continue
			}
			ts, err := strconv.ParseInt(t.Date.UTS, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: bad timestamp %q", ErrDecode, page, t.Date.UTS)
			}
			events = append(events, model.PlayEvent{Artist: t.Artist.Text, Title: t.Name, Timestamp: ts})
		}

		metrics.RecordLastfmPage()
		c.log.Debug(ctx, "fetched recent tracks page",
			logger.Int("page", page),
			logger.Int("total_pages", total),
			logger.Int("events", len(events)),
		)
	}

	return model.SortChronologically(events), nil
}

func (c *Client) page(ctx context.Context, user string, page int) (*recentTracks, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method":  "user.getrecenttracks",
			"user":    user,
			"api_key": c.apiKey,
			"format":  "json",
			"limit":   strconv.Itoa(c.pageSize),
			"page":    strconv.Itoa(page),
		}).
		Get(c.baseURL)
	if err != nil {
		metrics.RecordError("lastfm", "transport")
		return nil, err
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.RecordError("lastfm", "decode")
		if resp.IsError() {
			return nil, fmt.Errorf("%w: status %d", ErrAPI, resp.StatusCode())
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if body.Error != 0 {
		metrics.RecordError("lastfm", "api")
		return nil, fmt.Errorf("%w %d: %s", ErrAPI, body.Error, body.Message)
	}
	if resp.IsError() {
		metrics.RecordError("lastfm", "api")
		return nil, fmt.Errorf("%w: status %d", ErrAPI, resp.StatusCode())
	}
	if body.RecentTracks == nil {
		return nil, fmt.Errorf("%w: missing recenttracks", ErrDecode)
	}
	return body.RecentTracks, nil
}

type response struct {
	Error        int           `json:"error"`
	Message      string        `json:"message"`
	RecentTracks *recentTracks `json:"recenttracks"`
}

type recentTracks struct {
	Tracks trackList `json:"track"`
	Attr   pageAttr  `json:"@attr"`
}

type pageAttr struct {
	Page       string `json:"page"`
	TotalPages string `json:"totalPages"`
}

func (a pageAttr) pages() int {
	n, err := strconv.Atoi(a.TotalPages)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

type track struct {
	Name   string `json:"name"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

// trackList accepts both an array and a lone object, which Last.fm sends
// when a page holds a single track.
type trackList []track

func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var t track
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*l = trackList{t}
		return nil
	}
	var ts []track
	if err := json.Unmarshal(data, &ts); err != nil {
		return err
	}
	*l = ts
	return nil
}
