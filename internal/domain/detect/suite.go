package detect

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/earworms/internal/domain/model"
)

// Detector produces the candidates of one model.
type Detector interface {
	Model() model.Model
	Detect(events []model.PlayEvent) []model.Candidate
}

// Consecutive detects back-to-back repeats.
type Consecutive struct {
	MinRepeats int
}

// Model implements Detector.
func (Consecutive) Model() model.Model { return model.Consecutive }

// Detect implements Detector.
func (c Consecutive) Detect(events []model.PlayEvent) []model.Candidate {
	return ConsecutiveRuns(events, c.MinRepeats)
}

// Window detects dense plays inside a sliding window.
type Window struct {
	Kind     model.Model
	Days     int
	MinCount int
}

// Model implements Detector.
func (w Window) Model() model.Model { return w.Kind }

// Detect implements Detector.
func (w Window) Detect(events []model.PlayEvent) []model.Candidate {
	return SlidingWindow(events, w.Kind, w.Days, w.MinCount)
}

// Result holds one detector's output.
type Result struct {
	Model      model.Model
	Candidates []model.Candidate
}

// Suite runs a fixed set of detectors over the same log.
type Suite struct {
	detectors []Detector
	parallel  bool
}

// Option applies a configuration option to the Suite.
type Option func(*Suite)

// WithParallel evaluates detectors concurrently when enabled.
func WithParallel(enabled bool) Option {
	return func(s *Suite) {
		s.parallel = enabled
	}
}

// NewSuite creates a suite; results come back in the order detectors are given.
func NewSuite(detectors []Detector, opts ...Option) *Suite {
	s := &Suite{detectors: detectors, parallel: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detectors returns the configured detectors.
func (s *Suite) Detectors() []Detector {
	return s.detectors
}

// Run sorts the events chronologically once and evaluates every detector on
// that shared, read-only copy.
func (s *Suite) Run(ctx context.Context, events []model.PlayEvent) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	sorted := model.SortChronologically(events)
	results := make([]Result, len(s.detectors))

	if !s.parallel {
		for i, d := range s.detectors {
			results[i] = Result{Model: d.Model(), Candidates: d.Detect(sorted)}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range s.detectors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Result{Model: d.Model(), Candidates: d.Detect(sorted)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return results, nil
}
