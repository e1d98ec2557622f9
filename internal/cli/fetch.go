package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCommand(o *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the scrobble history into the event log",
		Long: `Downloads the full Last.fm history of the configured user and saves it to
the event log. An existing log is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: o.exporting(func(cmd *cobra.Command, _ []string) error {
			ctx, stop := withSignals(cmd.Context(), nil)
			defer stop()

			svc, err := o.service()
			if err != nil {
				return err
			}
			events, err := svc.LoadEvents(ctx, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scrobbles in %s\n", len(events), o.cfg.EventsFile)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "refetch even if the event log exists")
	return cmd
}
