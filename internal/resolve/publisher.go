package resolve

import (
	"context"
	"fmt"

	"github.com/okian/earworms/internal/domain/dedupe"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// Batch limits for playlist additions.
const (
	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

// Sink creates playlists and appends catalog ids to them.
type Sink interface {
	CreatePlaylist(ctx context.Context, name string) (string, error)
	AddItems(ctx context.Context, playlistID string, ids []string) error
}

// PublishResult reports which ids reached the playlist. After a failure,
// Pending holds the ids to pass to Append for a retry.
type PublishResult struct {
	PlaylistID string
	Added      []string
	Pending    []string
}

// Publisher writes ids to a Sink in rank order.
type Publisher struct {
	sink      Sink
	batchSize int
	log       logger.Logger
}

// PublisherOption applies a configuration option to the Publisher.
type PublisherOption func(*Publisher)

// WithBatchSize sets how many ids go into one add request (1..100).
func WithBatchSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 && n <= MaxBatchSize {
			p.batchSize = n
		}
	}
}

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPublisher builds a publisher over sink.
func NewPublisher(sink Sink, opts ...PublisherOption) (*Publisher, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	p := &Publisher{sink: sink, batchSize: DefaultBatchSize, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish creates playlist name and adds ids to it. Repeated ids keep their
// first position only.
func (p *Publisher) Publish(ctx context.Context, name string, ids []string) (PublishResult, error) {
	unique := dedupe.Unique(ctx, dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(ids))), ids)

	playlistID, err := p.sink.CreatePlaylist(ctx, name)
	if err != nil {
		return PublishResult{Pending: unique}, fmt.Errorf("create playlist %q: %w", name, err)
	}
	p.log.Info(ctx, "created playlist", logger.String("name", name), logger.String("playlist_id", playlistID))

	return p.Append(ctx, playlistID, unique)
}

// Append adds ids to an existing playlist in batches. On failure the error
// wraps ErrPartialPublish and the result lists what was added and what is
// still pending.
func (p *Publisher) Append(ctx context.Context, playlistID string, ids []string) (PublishResult, error) {
	ids = dedupe.Unique(ctx, dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(ids))), ids)
	res := PublishResult{PlaylistID: playlistID, Added: make([]string, 0, len(ids))}

	for start := 0; start < len(ids); start += p.batchSize {
		end := min(start+p.batchSize, len(ids))
		batch := ids[start:end]
		if err := p.sink.AddItems(ctx, playlistID, batch); err != nil {
			metrics.RecordPublishBatch("error")
			res.Pending = append([]string(nil), ids[start:]...)
			p.log.Error(ctx, "playlist batch failed",
				logger.String("playlist_id", playlistID),
				logger.Int("added", len(res.Added)),
				logger.Int("pending", len(res.Pending)),
				logger.Error(err),
			)
			return res, fmt.Errorf("%w: %d added, %d pending: %w", ErrPartialPublish, len(res.Added), len(res.Pending), err)
		}
		metrics.RecordPublishBatch("ok")
		res.Added = append(res.Added, batch...)
	}

	p.log.Info(ctx, "playlist published",
		logger.String("playlist_id", playlistID),
		logger.Int("tracks", len(res.Added)),
	)
	return res, nil
}
