package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/earworms/internal/adapters/corrections"
	"github.com/okian/earworms/internal/adapters/spotify"
	"github.com/okian/earworms/internal/app"
	"github.com/okian/earworms/internal/resolve"
	"github.com/okian/earworms/pkg/logger"
)

type runFlags struct {
	nonInteractive bool
	dryRun         bool
	playlistName   string
}

func newRunCommand(o *rootOptions) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect earworms and publish them as a Spotify playlist",
		Long: `Loads (or fetches) the scrobble log, ranks earworms, matches them against
the Spotify catalog and creates a playlist.

Tracks Spotify cannot find are asked about on the terminal: type
"artist,title" to search for something else, press ENTER to search again,
or type "skip" (or press Ctrl+C) to leave the track out. Accepted
alternatives are remembered in the corrections file.`,
		Args: cobra.NoArgs,
		RunE: o.exporting(func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), cmd.OutOrStdout(), f)
		}),
	}
	cmd.Flags().BoolVar(&f.nonInteractive, "non-interactive", false, "skip unmatched tracks instead of prompting")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "resolve tracks but do not create a playlist")
	cmd.Flags().StringVar(&f.playlistName, "playlist-name", "", "name of the created playlist")
	return cmd
}

func (o *rootOptions) run(parent context.Context, out io.Writer, f runFlags) error {
	var escalator resolve.Escalator = resolve.SkipEscalator{}
	var interrupt func() bool
	if !f.nonInteractive {
		console := resolve.NewConsoleEscalator(o.in, out)
		escalator, interrupt = console, console.Interrupt
	}
	ctx, stop := withSignals(parent, interrupt)
	defer stop()

	httpClient, err := spotify.Authenticate(ctx, spotify.AuthConfig{
		ClientID:     o.cfg.SpotifyClientID,
		ClientSecret: o.cfg.SpotifyClientSecret,
		RedirectURI:  o.cfg.SpotifyRedirectURI,
		TokenFile:    o.cfg.SpotifyTokenFile,
		Public:       o.cfg.PlaylistPublic,
	}, spotify.WithPrompt(o.errOut), spotify.WithAuthLogger(o.log.Named("spotify_auth")))
	if err != nil {
		return err
	}
	client := spotify.NewClient(httpClient,
		spotify.WithRatePerSecond(o.cfg.SpotifyRatePerSec),
		spotify.WithPublic(o.cfg.PlaylistPublic),
		spotify.WithLogger(o.log.Named("spotify")),
	)

	resolver, err := resolve.NewResolver(client,
		resolve.WithCorrections(corrections.New(o.cfg.CorrectionsFile)),
		resolve.WithEscalator(escalator),
		resolve.WithWorkers(o.cfg.ResolveWorkers),
		resolve.WithLogger(o.log.Named("resolve")),
	)
	if err != nil {
		return err
	}
	publisher, err := resolve.NewPublisher(client,
		resolve.WithBatchSize(o.cfg.PlaylistBatchSize),
		resolve.WithPublisherLogger(o.log.Named("publish")),
	)
	if err != nil {
		return err
	}

	svc, err := o.service(app.WithResolver(resolver), app.WithPublisher(publisher))
	if err != nil {
		return err
	}

	report, err := svc.Run(ctx, app.RunOptions{DryRun: f.dryRun, PlaylistName: f.playlistName})
	printReport(out, report)
	if errors.Is(err, resolve.ErrPartialPublish) && report.Published != nil {
		o.log.Error(ctx, "playlist incomplete",
			logger.String("playlist_id", report.Published.PlaylistID),
			logger.Int("pending", len(report.Published.Pending)),
		)
	}
	return err
}

func printReport(w io.Writer, r app.Report) {
	for i, t := range r.Playlist {
		fmt.Fprintf(w, "%d. %s - %s: %s\n", i+1, t.Track.Artist, t.Track.Title, t.Reason)
	}

	skipped := 0
	for _, res := range r.Resolutions {
		if res.Skipped {
			skipped++
		}
	}
	if len(r.Resolutions) > 0 {
		fmt.Fprintf(w, "Matched %d of %d tracks, skipped %d.\n", len(r.Resolutions)-skipped, len(r.Resolutions), skipped)
	}
	if r.Published != nil && r.Published.PlaylistID != "" {
		fmt.Fprintf(w, "Playlist %s: %d tracks added", r.Published.PlaylistID, len(r.Published.Added))
		if n := len(r.Published.Pending); n > 0 {
			fmt.Fprintf(w, ", %d pending", n)
		}
		fmt.Fprintln(w, ".")
	}
}
