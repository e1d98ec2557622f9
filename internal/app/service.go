// Package app wires the event log, detectors, aggregator, resolver and
// publisher into the earworms pipeline.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/earworms/internal/domain/aggregate"
	"github.com/okian/earworms/internal/domain/detect"
	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/internal/resolve"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// EventStore persists the scrobble log.
type EventStore interface {
	Exists() (bool, error)
	Load(ctx context.Context) ([]model.PlayEvent, error)
	Save(ctx context.Context, events []model.PlayEvent) error
}

// EventSource downloads a user's history.
type EventSource interface {
	Fetch(ctx context.Context, user string) ([]model.PlayEvent, error)
}

// Report summarizes one pipeline run.
type Report struct {
	RunID       string
	Events      int
	Playlist    model.RankedPlaylist
	Resolutions []resolve.Resolution
	// Published is nil for dry runs and when nothing resolved.
	Published *resolve.PublishResult
}

// RunOptions tweak a single Run.
type RunOptions struct {
	// DryRun stops after resolution.
	DryRun bool
	// PlaylistName overrides the configured name.
	PlaylistName string
}

// Service runs the pipeline. Detection is pure; resolution and publication
// are only reachable when a resolver and publisher are configured.
type Service struct {
	mu sync.Mutex

	store        EventStore
	source       EventSource
	user         string
	suite        *detect.Suite
	aggregator   *aggregate.Aggregator
	resolver     *resolve.Resolver
	publisher    *resolve.Publisher
	playlistName string
	runID        string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where the history is downloaded from when no log exists.
func WithSource(src EventSource, user string) Option {
	return func(s *Service) {
		s.source = src
		s.user = user
	}
}

// WithSuite replaces the default detector suite.
func WithSuite(suite *detect.Suite) Option {
	return func(s *Service) {
		if suite != nil {
			s.suite = suite
		}
	}
}

// WithAggregator replaces the default aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithResolver enables resolution.
func WithResolver(r *resolve.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithPublisher enables publication.
func WithPublisher(p *resolve.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPlaylistName sets the name of published playlists.
func WithPlaylistName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.playlistName = name
		}
	}
}

// WithRunID sets the run identifier reported in logs and the Report.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store EventStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNoEventStore
	}
	s := &Service{
		store:        store,
		suite:        detect.NewSuite(DefaultDetectors()),
		aggregator:   aggregate.New(),
		playlistName: DefaultPlaylistName,
		runID:        uuid.NewString(),
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunID returns the identifier of this service's run.
func (s *Service) RunID() string { return s.runID }

// LoadEvents returns the saved log. When none exists, or force is set, the
// history is fetched from the source, saved and read back from disk so that
// every run analyses exactly what is stored.
func (s *Service) LoadEvents(ctx context.Context, force bool) ([]model.PlayEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.Exists()
	if err != nil {
		return nil, err
	}
	if exists && !force {
		s.logger.Info(ctx, "loading scrobbles from event log")
		return s.load(ctx)
	}
	if s.source == nil {
		return nil, ErrNoSource
	}

	s.logger.Info(ctx, "fetching scrobbles from source", logger.String("user", s.user))
	fetched, err := s.source.Fetch(ctx, s.user)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	if err := s.store.Save(ctx, fetched); err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}
	s.logger.Info(ctx, "saved event log", logger.Int("events", len(fetched)))
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) ([]model.PlayEvent, error) {
	events, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	metrics.SetEventsLoaded(len(events))
	return events, nil
}

// Detect runs every detector and merges their candidates.
func (s *Service) Detect(ctx context.Context, events []model.PlayEvent) (model.RankedPlaylist, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDetectionDuration(time.Since(start).Seconds())
	}()

	results, err := s.suite.Run(ctx, events)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		s.logger.Debug(ctx, "detector finished",
			logger.String("model", r.Model.String()),
			logger.Int("candidates", len(r.Candidates)),
		)
	}
	playlist, err := s.aggregator.Aggregate(ctx, results)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "ranked earworms", logger.Int("tracks", len(playlist)))
	return playlist, nil
}

// Resolve maps the playlist to catalog ids.
func (s *Service) Resolve(ctx context.Context, playlist model.RankedPlaylist) ([]resolve.Resolution, error) {
	if s.resolver == nil {
		return nil, ErrNoResolver
	}
	return s.resolver.Resolve(ctx, playlist)
}

// Publish creates the playlist from ids.
func (s *Service) Publish(ctx context.Context, name string, ids []string) (resolve.PublishResult, error) {
	if s.publisher == nil {
		return resolve.PublishResult{}, ErrNoPublisher
	}
	if name == "" {
		name = s.playlistName
	}
	return s.publisher.Publish(ctx, name, ids)
}

// Run executes load, detect, resolve and publish. A partial publication is
// returned together with the report so the caller can retry the remainder.
func (s *Service) Run(ctx context.Context, opts RunOptions) (Report, error) {
	report := Report{RunID: s.runID}

	events, err := s.LoadEvents(ctx, false)
	if err != nil {
		return report, err
	}
	report.Events = len(events)

	playlist, err := s.Detect(ctx, events)
	if err != nil {
		return report, err
	}
	report.Playlist = playlist
	if len(playlist) == 0 {
		s.logger.Info(ctx, "no earworms found")
		return report, nil
	}

	resolutions, err := s.Resolve(ctx, playlist)
	if err != nil {
		return report, err
	}
	report.Resolutions = resolutions

	ids := resolve.CatalogIDs(resolutions)
	if opts.DryRun {
		s.logger.Info(ctx, "dry run, not publishing", logger.Int("resolved", len(ids)))
		return report, nil
	}
	if len(ids) == 0 {
		s.logger.Warn(ctx, "nothing resolved, not publishing")
		return report, nil
	}

	res, err := s.Publish(ctx, opts.PlaylistName, ids)
	report.Published = &res
	if err != nil {
		return report, err
	}
	s.logger.Info(ctx, "created playlist",
		logger.String("playlist_id", res.PlaylistID),
		logger.Int("tracks", len(res.Added)),
	)
	return report, nil
}
