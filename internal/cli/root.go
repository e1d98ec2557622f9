// Package cli exposes the earworms pipeline as a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/earworms/internal/adapters/eventstore"
	"github.com/okian/earworms/internal/adapters/lastfm"
	"github.com/okian/earworms/internal/app"
	"github.com/okian/earworms/internal/config"
	"github.com/okian/earworms/pkg/logger"
	"github.com/okian/earworms/pkg/metrics"
)

// rootOptions holds the persistent flags and the state built from them in
// PersistentPreRunE.
type rootOptions struct {
	configFile      string
	logLevel        string
	logFormat       string
	eventsFile      string
	correctionsFile string
	metricsFile     string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg   *config.Config
	log   logger.Logger
	runID string
}

// NewRootCommand builds the command tree reading from in and writing
// results to out and diagnostics to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	o := &rootOptions{in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "earworms",
		Short: "Find earworms in a Last.fm listening history",
		Long: `earworms reads a Last.fm scrobble log, detects tracks played obsessively
(back-to-back runs and dense plays within a week, month or year), ranks them
and publishes the result as a Spotify playlist.

The scrobble log is downloaded once and kept as a CSV file; later runs work
offline until "fetch --force" refreshes it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.initialize(cmd)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "",
		"config file (default is $EARWORMS_CONFIG)")
	flags.StringVar(&o.logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	flags.StringVar(&o.logFormat, "log-format", "",
		"log format (text, json)")
	flags.StringVar(&o.eventsFile, "events", "",
		"scrobble log CSV file")
	flags.StringVar(&o.correctionsFile, "corrections", "",
		"track corrections CSV file")
	flags.StringVar(&o.metricsFile, "metrics-file", "",
		"write Prometheus metrics to this file on exit")

	cmd.AddCommand(newFetchCommand(o), newDetectCommand(o), newRunCommand(o))
	return cmd
}

// Execute runs the command tree against the process streams.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// initialize loads configuration, applies flag overrides and sets up logging.
func (o *rootOptions) initialize(cmd *cobra.Command) error {
	var opts []config.LoadOption
	if o.configFile != "" {
		opts = append(opts, config.WithFile(o.configFile))
	}
	cfg, err := config.Load(cmd.Context(), opts...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("events") {
		cfg.EventsFile = o.eventsFile
	}
	if flags.Changed("corrections") {
		cfg.CorrectionsFile = o.correctionsFile
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(o.errOut), logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	o.cfg = cfg
	o.runID = uuid.NewString()
	o.log = logger.Get().With(logger.String("run_id", o.runID))
	return nil
}

// exporting wraps a RunE so metrics are written however the command ends;
// cobra skips post-run hooks on failure.
func (o *rootOptions) exporting(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if xerr := o.exportMetrics(cmd.Context()); xerr != nil {
				err = errors.Join(err, xerr)
			}
		}()
		return run(cmd, args)
	}
}

func (o *rootOptions) exportMetrics(ctx context.Context) error {
	if o.cfg == nil || o.cfg.MetricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(o.cfg.MetricsFile); err != nil {
		return err
	}
	o.log.Debug(ctx, "metrics written", logger.String("path", o.cfg.MetricsFile))
	return nil
}

// source builds the Last.fm client, or nil when no API key is configured.
func (o *rootOptions) source() (app.EventSource, error) {
	if o.cfg.LastfmAPIKey == "" {
		return nil, nil
	}
	client, err := lastfm.New(o.cfg.LastfmAPIKey,
		lastfm.WithBaseURL(o.cfg.LastfmBaseURL),
		lastfm.WithPageSize(o.cfg.LastfmPageSize),
		lastfm.WithRatePerSecond(o.cfg.LastfmRatePerSec),
		lastfm.WithLogger(o.log.Named("lastfm")),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// service assembles the pipeline; extra options add resolution and
// publication.
func (o *rootOptions) service(extra ...app.Option) (*app.Service, error) {
	opts := []app.Option{
		app.WithSuite(app.NewSuite(o.cfg)),
		app.WithAggregator(app.NewAggregator(o.cfg, o.log.Named("aggregate"))),
		app.WithPlaylistName(o.cfg.PlaylistName),
		app.WithRunID(o.runID),
		app.WithLogger(o.log.Named("app")),
	}
	src, err := o.source()
	if err != nil {
		return nil, err
	}
	if src != nil {
		opts = append(opts, app.WithSource(src, o.cfg.LastfmUsername))
	}
	opts = append(opts, extra...)
	return app.New(eventstore.New(o.cfg.EventsFile), opts...)
}
