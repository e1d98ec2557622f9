package resolve

import (
	"context"
	"fmt"

	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// DefaultWorkers is the number of concurrent first-pass lookups.
const DefaultWorkers = 4

// Resolver turns a ranked playlist into catalog ids.
type Resolver struct {
	catalog     Catalog
	corrections CorrectionStore
	escalator   Escalator
	workers     int
	log         logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithCorrections sets the correction cache.
func WithCorrections(c CorrectionStore) Option {
	return func(r *Resolver) {
		if c != nil {
			r.corrections = c
		}
	}
}

// WithEscalator sets how unmatched tracks are handled. Defaults to skipping.
func WithEscalator(e Escalator) Option {
	return func(r *Resolver) {
		if e != nil {
			r.escalator = e
		}
	}
}

// WithWorkers sets the number of concurrent first-pass lookups.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver builds a resolver over catalog.
func NewResolver(catalog Catalog, opts ...Option) (*Resolver, error) {
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	r := &Resolver{
		catalog:     catalog,
		corrections: noCorrections{},
		escalator:   SkipEscalator{},
		workers:     DefaultWorkers,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns one Resolution per track, in rank order. Stored
// corrections are substituted first, then every track is looked up
// concurrently; tracks still unmatched go through the escalator one at a
// time. A catalog or escalator error aborts the pass.
func (r *Resolver) Resolve(ctx context.Context, playlist model.RankedPlaylist) ([]Resolution, error) {
	out := make([]Resolution, len(playlist))
	attempts := make([]model.TrackKey, len(playlist))
	stored := make([]bool, len(playlist))

	for i, t := range playlist {
		out[i].Track = t.Track
		attempts[i] = t.Track
		repl, ok, err := r.corrections.Lookup(ctx, t.Track)
		if err != nil {
			return nil, fmt.Errorf("resolve: corrections: %w", err)
		}
		if ok {
			attempts[i] = repl
			stored[i] = true
			r.log.Info(ctx, "using stored alternative",
				logger.String("original", t.Track.String()),
				logger.String("alternative", repl.String()),
			)
		}
	}

	pool := &lookupPool{catalog: r.catalog, workers: r.workers, log: r.log.Named("lookup")}
	first, err := pool.run(ctx, attempts)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	for i := range out {
		if first[i].found {
			out[i].Resolved = attempts[i]
			out[i].CatalogID = first[i].id
		} else {
			res, err := r.escalate(ctx, out[i].Track, attempts[i])
			if err != nil {
				return nil, fmt.Errorf("resolve: %w", err)
			}
			out[i] = res
		}

		switch {
		case out[i].Skipped:
			metrics.RecordResolution("skipped")
			r.log.Info(ctx, "skipped track", logger.String("track", out[i].Track.String()))
			continue
		case out[i].Resolved == out[i].Track:
			metrics.RecordResolution("matched")
		default:
			metrics.RecordResolution("corrected")
		}

		// A stored correction that still matches needs no new row; one that
		// went stale is superseded, even by the original key itself.
		known := out[i].Track
		if stored[i] {
			known = attempts[i]
		}
		if out[i].Resolved != known {
			if err := r.remember(ctx, out[i].Track, out[i].Resolved); err != nil {
				return nil, fmt.Errorf("resolve: %w", err)
			}
		}
	}
	return out, nil
}

func (r *Resolver) escalate(ctx context.Context, original, current model.TrackKey) (Resolution, error) {
	tctx, release := ctx, func() {}
	if scope, ok := r.escalator.(TrackScope); ok {
		tctx, release = scope.Track(ctx)
	}
	defer release()

	// abandoned reports an interrupt of this track alone.
	abandoned := func() bool { return tctx.Err() != nil && ctx.Err() == nil }
	skip := func() Resolution {
		r.log.Info(ctx, "track abandoned on interrupt", logger.String("track", original.String()))
		return Resolution{Track: original, Resolved: current, Skipped: true}
	}

	for {
		r.log.Warn(ctx, "track not found in catalog",
			logger.String("artist", current.Artist),
			logger.String("title", current.Title),
		)
		dec, err := r.escalator.Escalate(tctx, current)
		if err != nil {
			if abandoned() {
				return skip(), nil
			}
			return Resolution{}, fmt.Errorf("escalate %s: %w", original, err)
		}

		switch dec.Action {
		case Skip:
			return Resolution{Track: original, Resolved: current, Skipped: true}, nil
		case Substitute:
			current = dec.Replacement
		case Retry:
		}

		id, found, err := r.catalog.Lookup(tctx, current)
		if err != nil {
			if abandoned() {
				return skip(), nil
			}
			return Resolution{}, fmt.Errorf("lookup %s: %w", current, err)
		}
		if found {
			return Resolution{Track: original, Resolved: current, CatalogID: id}, nil
		}
	}
}

func (r *Resolver) remember(ctx context.Context, original, replacement model.TrackKey) error {
	if _, none := r.corrections.(noCorrections); none {
		return nil
	}
	added, err := r.corrections.Append(ctx, original, replacement)
	if err != nil {
		return fmt.Errorf("store correction: %w", err)
	}
	if !added {
		r.log.Debug(ctx, "correction already current",
			logger.String("original", original.String()),
			logger.String("alternative", replacement.String()),
		)
		return nil
	}
	metrics.RecordCorrectionStored()
	r.log.Info(ctx, "stored alternative",
		logger.String("original", original.String()),
		logger.String("alternative", replacement.String()),
	)
	return nil
}
