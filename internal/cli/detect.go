package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/earworms/internal/domain/model"
)

// Output formats for the detect command.
const (
	formatTable = "table"
	formatJSON  = "json"
)

type rankedRow struct {
	Rank   int    `json:"rank"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Weight int    `json:"weight"`
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

func newDetectCommand(o *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Rank earworms without touching Spotify",
		Args:  cobra.NoArgs,
		RunE: o.exporting(func(cmd *cobra.Command, _ []string) error {
			if format != formatTable && format != formatJSON {
				return fmt.Errorf("unknown output format: %s", format)
			}
			ctx, stop := withSignals(cmd.Context(), nil)
			defer stop()

			svc, err := o.service()
			if err != nil {
				return err
			}
			events, err := svc.LoadEvents(ctx, false)
			if err != nil {
				return err
			}
			playlist, err := svc.Detect(ctx, events)
			if err != nil {
				return err
			}
			return writePlaylist(cmd.OutOrStdout(), format, playlist)
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json)")
	return cmd
}

func writePlaylist(w io.Writer, format string, playlist model.RankedPlaylist) error {
	rows := make([]rankedRow, len(playlist))
	for i, t := range playlist {
		rows[i] = rankedRow{
			Rank:   i + 1,
			Artist: t.Track.Artist,
			Title:  t.Track.Title,
			Weight: t.Weight,
			Model:  t.Model.String(),
			Reason: t.Reason,
		}
	}

	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tARTIST\tTITLE\tWEIGHT\tREASON")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", r.Rank, r.Artist, r.Title, r.Weight, r.Reason)
	}
	return tw.Flush()
}
