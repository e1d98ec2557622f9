// Package aggregate merges per-model candidates into one weighted ranking.
package aggregate

import (
	"context"
	"fmt"

	"github.com/okian/earworms/internal/adapters/repository"
	"github.com/okian/earworms/internal/domain/detect"
	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// Aggregator scales candidates by model weight and keeps the best entry per track.
type Aggregator struct {
	weights  map[model.Model]int
	limits   map[model.Model]int
	total    int
	log      logger.Logger
	newStore func() repository.Store
}

// New returns an aggregator with the default weights and caps.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		weights: map[model.Model]int{
			model.Consecutive: DefaultConsecutiveWeight,
			model.Week:        DefaultWeekWeight,
			model.Month:       DefaultMonthWeight,
			model.Year:        DefaultYearWeight,
		},
		limits: map[model.Model]int{
			model.Consecutive: DefaultLimit,
			model.Week:        DefaultLimit,
			model.Month:       DefaultLimit,
			model.Year:        DefaultLimit,
		},
		total:    DefaultLimit,
		log:      logger.Nop(),
		newStore: func() repository.Store { return repository.NewTreapStore() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Weight returns the configured weight of m.
func (a *Aggregator) Weight(m model.Model) int {
	return a.weights[m]
}

// Aggregate merges detector results in the order given. Each model's list is
// truncated to its cap before merging, so a track cut from one model can
// still enter through another.
func (a *Aggregator) Aggregate(ctx context.Context, results []detect.Result) (model.RankedPlaylist, error) {
	store := a.newStore()

	for _, res := range results {
		candidates := res.Candidates
		if limit, ok := a.limits[res.Model]; ok && len(candidates) > limit {
			candidates = candidates[:limit]
		}
		metrics.SetCandidates(res.Model.String(), len(res.Candidates))

		w := a.weights[res.Model]
		for _, c := range candidates {
			weight := c.Metric * w
			if weight <= 0 {
				continue
			}
			entry := repository.Entry{
				Track:  c.Track,
				Weight: weight,
				Reason: Reason(res.Model, c.Metric, weight),
				Model:  res.Model,
			}
			if _, err := store.UpdateBest(ctx, entry); err != nil {
				return nil, fmt.Errorf("aggregate %s: %w", res.Model, err)
			}
		}
	}

	if store.Count(ctx) == 0 {
		metrics.SetRankedTracks(0)
		return model.RankedPlaylist{}, nil
	}

	top, err := store.TopN(ctx, a.total)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	playlist := make(model.RankedPlaylist, len(top))
	for i, e := range top {
		playlist[i] = model.WeightedTrack{Track: e.Track, Weight: e.Weight, Reason: e.Reason, Model: e.Model}
		a.log.Info(ctx, "ranked track",
			logger.Int("rank", e.Rank),
			logger.String("artist", e.Track.Artist),
			logger.String("title", e.Track.Title),
			logger.Int("weight", e.Weight),
			logger.String("reason", e.Reason),
		)
	}
	metrics.SetRankedTracks(len(playlist))
	return playlist, nil
}

// Reason renders the provenance string of a weighted track.
func Reason(m model.Model, metric, weight int) string {
	if m == model.Consecutive {
		return fmt.Sprintf("played %d times in a row, weight %d", metric, weight)
	}
	return fmt.Sprintf("played %d times in a %s, weight %d", metric, m, weight)
}
