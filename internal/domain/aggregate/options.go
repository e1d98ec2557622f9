package aggregate

import (
	"github.com/okian/earworms/internal/adapters/repository"
	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
)

// Default model weights and caps.
const (
	DefaultConsecutiveWeight = 10
	DefaultWeekWeight        = 5
	DefaultMonthWeight       = 3
	DefaultYearWeight        = 1
	DefaultLimit             = 200
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithModelWeight sets the multiplier applied to a model's metric.
func WithModelWeight(m model.Model, weight int) Option {
	return func(a *Aggregator) {
		a.weights[m] = weight
	}
}

// WithModelLimit caps how many candidates a model contributes before merging.
// Non-positive limits are ignored.
func WithModelLimit(m model.Model, limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.limits[m] = limit
		}
	}
}

// WithTotalLimit caps the length of the ranked playlist.
func WithTotalLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.total = limit
		}
	}
}

// WithLogger sets the logger that receives the decision trail.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithStoreFactory replaces the rank store used for each aggregation.
func WithStoreFactory(f func() repository.Store) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.newStore = f
		}
	}
}
