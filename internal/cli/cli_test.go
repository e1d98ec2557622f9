package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/earworms/internal/adapters/eventstore"
	"github.com/okian/earworms/internal/app"
	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/internal/resolve"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"EARWORMS_CONFIG", "LASTFM_API_KEY", "LASTFM_USERNAME"} {
		t.Setenv(key, "")
	}
}

func writeLog(t *testing.T, events []model.PlayEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scrobbles.csv")
	if err := eventstore.New(path).Save(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	return path
}

func loop(artist, title string, n int, start int64) []model.PlayEvent {
	out := make([]model.PlayEvent, n)
	for i := range out {
		out[i] = model.PlayEvent{Artist: artist, Title: title, Timestamp: start + int64(i)*60}
	}
	return out
}

func execute(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestDetectCommand(t *testing.T) {
	isolateEnv(t)

	var events []model.PlayEvent
	events = append(events, loop("Daft Punk", "One More Time", 6, 1_000)...)
	events = append(events, loop("Air", "La Femme d'Argent", 1, 5_000)...)
	path := writeLog(t, events)

	Convey("Given a saved scrobble log", t, func() {
		Convey("JSON output lists the ranked tracks", func() {
			out, _, err := execute("detect", "--events", path, "--format", "json")
			So(err, ShouldBeNil)

			var rows []rankedRow
			So(json.Unmarshal([]byte(out), &rows), ShouldBeNil)
			So(rows, ShouldNotBeEmpty)
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[0].Artist, ShouldEqual, "Daft Punk")
			So(rows[0].Model, ShouldEqual, model.Consecutive.String())
		})

		Convey("Table output has a header row", func() {
			out, _, err := execute("detect", "--events", path)
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "RANK")
			So(out, ShouldContainSubstring, "One More Time")
		})

		Convey("An unknown format is rejected", func() {
			_, _, err := execute("detect", "--events", path, "--format", "xml")
			So(err, ShouldNotBeNil)
		})

		Convey("Logs go to the error stream as JSON when asked", func() {
			_, errOut, err := execute("detect", "--events", path, "--log-format", "json", "--log-level", "debug")
			So(err, ShouldBeNil)
			So(errOut, ShouldContainSubstring, `"run_id"`)
		})
	})
}

func TestFetchCommand(t *testing.T) {
	isolateEnv(t)

	Convey("Given no event log and no Last.fm key", t, func() {
		path := filepath.Join(t.TempDir(), "missing.csv")
		_, _, err := execute("fetch", "--events", path)
		So(errors.Is(err, app.ErrNoSource), ShouldBeTrue)
	})

	Convey("Given an existing log", t, func() {
		path := writeLog(t, loop("A", "x", 3, 10))
		out, _, err := execute("fetch", "--events", path)
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "3 scrobbles")
	})
}

func TestMetricsFile(t *testing.T) {
	isolateEnv(t)

	Convey("Given a metrics file flag", t, func() {
		dir := t.TempDir()
		events := writeLog(t, loop("A", "x", 4, 10))
		metricsPath := filepath.Join(dir, "earworms.prom")

		_, _, err := execute("detect", "--events", events, "--metrics-file", metricsPath)
		So(err, ShouldBeNil)

		data, err := os.ReadFile(metricsPath)
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "earworms_")
	})

	Convey("Given a command that fails", t, func() {
		dir := t.TempDir()
		metricsPath := filepath.Join(dir, "failed.prom")

		_, _, err := execute("fetch", "--events", filepath.Join(dir, "missing.csv"), "--metrics-file", metricsPath)
		So(errors.Is(err, app.ErrNoSource), ShouldBeTrue)

		Convey("Then the metrics are still written", func() {
			data, err := os.ReadFile(metricsPath)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "earworms_")
		})
	})
}

func TestRouteSignals(t *testing.T) {
	Convey("Given a signal router", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigs := make(chan os.Signal, 1)

		Convey("A consumed interrupt leaves the context alive", func() {
			consumed := make(chan struct{}, 1)
			go routeSignals(ctx, sigs, func() bool {
				consumed <- struct{}{}
				return true
			}, cancel)

			sigs <- os.Interrupt
			<-consumed
			So(ctx.Err(), ShouldBeNil)
		})

		Convey("An unconsumed interrupt cancels", func() {
			go routeSignals(ctx, sigs, func() bool { return false }, cancel)
			sigs <- os.Interrupt
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			So(ctx.Err(), ShouldNotBeNil)
		})

		Convey("SIGTERM always cancels", func() {
			go routeSignals(ctx, sigs, func() bool { return true }, cancel)
			sigs <- syscall.SIGTERM
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			So(ctx.Err(), ShouldNotBeNil)
		})
	})
}

func TestPrintReport(t *testing.T) {
	Convey("Given a finished run", t, func() {
		a := model.TrackKey{Artist: "A", Title: "x"}
		b := model.TrackKey{Artist: "B", Title: "y"}
		report := app.Report{
			Playlist: model.RankedPlaylist{
				{Track: a, Weight: 40, Reason: "played 4 times in a row, weight 40"},
				{Track: b, Weight: 30, Reason: "played 3 times in a row, weight 30"},
			},
			Resolutions: []resolve.Resolution{
				{Track: a, Resolved: a, CatalogID: "id-a"},
				{Track: b, Resolved: b, Skipped: true},
			},
			Published: &resolve.PublishResult{PlaylistID: "pl", Added: []string{"id-a"}},
		}

		var buf bytes.Buffer
		printReport(&buf, report)
		out := buf.String()

		So(out, ShouldContainSubstring, "1. A - x: played 4 times in a row, weight 40\n")
		So(out, ShouldContainSubstring, "Matched 1 of 2 tracks, skipped 1.")
		So(out, ShouldContainSubstring, "Playlist pl: 1 tracks added.")
	})
}
