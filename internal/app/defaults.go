package app

import (
	"github.com/okian/earworms/internal/config"
	"github.com/okian/earworms/internal/domain/aggregate"
	"github.com/okian/earworms/internal/domain/detect"
	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
)

// DefaultPlaylistName names published playlists unless configured.
const DefaultPlaylistName = "Last.fm Weighted Combined"

// DefaultDetectors returns the four detectors with their default thresholds.
func DefaultDetectors() []detect.Detector {
	return Detectors(config.New())
}

// Detectors builds the detector set in merge order: consecutive, week,
// month, year.
func Detectors(cfg *config.Config) []detect.Detector {
	return []detect.Detector{
		detect.Consecutive{MinRepeats: cfg.MinRepeats},
		detect.Window{Kind: model.Week, Days: cfg.WindowDaysWeek, MinCount: cfg.MinCountWeek},
		detect.Window{Kind: model.Month, Days: cfg.WindowDaysMonth, MinCount: cfg.MinCountMonth},
		detect.Window{Kind: model.Year, Days: cfg.WindowDaysYear, MinCount: cfg.MinCountYear},
	}
}

// NewSuite builds the detector suite from cfg.
func NewSuite(cfg *config.Config) *detect.Suite {
	return detect.NewSuite(Detectors(cfg), detect.WithParallel(cfg.ParallelDetectors))
}

// NewAggregator builds the aggregator from cfg.
func NewAggregator(cfg *config.Config, log logger.Logger) *aggregate.Aggregator {
	return aggregate.New(
		aggregate.WithModelWeight(model.Consecutive, cfg.WeightConsecutive),
		aggregate.WithModelWeight(model.Week, cfg.WeightWeek),
		aggregate.WithModelWeight(model.Month, cfg.WeightMonth),
		aggregate.WithModelWeight(model.Year, cfg.WeightYear),
		aggregate.WithModelLimit(model.Consecutive, cfg.LimitRepeats),
		aggregate.WithModelLimit(model.Week, cfg.LimitWeek),
		aggregate.WithModelLimit(model.Month, cfg.LimitMonth),
		aggregate.WithModelLimit(model.Year, cfg.LimitYear),
		aggregate.WithTotalLimit(cfg.LimitTotal),
		aggregate.WithLogger(log),
	)
}
