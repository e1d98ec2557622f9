package spotify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/okian/earworms/internal/adapters/spotify"
	"github.com/okian/earworms/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeAPI serves the subset of the Web API the client uses.
type fakeAPI struct {
	mu       sync.Mutex
	queries  []string
	created  map[string]any
	added    [][]string
	failNext int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		fail := f.failNext > 0
		if fail {
			f.failNext--
		}
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"status":500,"message":"boom"}}`)
			return
		}
		if strings.Contains(r.URL.Query().Get("q"), "Unknown") {
			io.WriteString(w, `{"tracks":{"items":[],"total":0}}`)
			return
		}
		io.WriteString(w, `{"tracks":{"items":[{"id":"trk1","name":"x"}],"total":1}}`)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"id":"listener"}`)
	})
	mux.HandleFunc("/users/listener/playlists", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = body
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"pl1","name":"x"}`)
	})
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.added = append(f.added, body.URIs)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"snapshot_id":"s1"}`)
	})
	return mux
}

func newTestClient(f *fakeAPI, opts ...spotify.Option) (*spotify.Client, func()) {
	srv := httptest.NewServer(f.handler())
	opts = append([]spotify.Option{
		spotify.WithBaseURL(srv.URL + "/"),
		spotify.WithRatePerSecond(0),
	}, opts...)
	return spotify.NewClient(srv.Client(), opts...), srv.Close
}

func TestLookup(t *testing.T) {
	ctx := context.Background()

	Convey("Given a catalog", t, func() {
		api := &fakeAPI{}
		client, done := newTestClient(api)
		defer done()

		Convey("When the track exists", func() {
			id, ok, err := client.Lookup(ctx, model.TrackKey{Artist: "Massive Attack", Title: "Teardrop"})

			Convey("Then its id is returned", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "trk1")
				So(api.queries, ShouldResemble, []string{"track:Teardrop artist:Massive Attack"})
			})
		})

		Convey("When nothing matches", func() {
			_, ok, err := client.Lookup(ctx, model.TrackKey{Artist: "Unknown", Title: "Nope"})

			Convey("Then it is not found, without error", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a failing catalog", t, func() {
		api := &fakeAPI{failNext: 10}
		client, done := newTestClient(api, spotify.WithBreaker(2, time.Minute))
		defer done()
		key := model.TrackKey{Artist: "a", Title: "b"}

		Convey("Then errors surface and the breaker opens", func() {
			_, _, err := client.Lookup(ctx, key)
			So(err, ShouldNotBeNil)
			_, _, err = client.Lookup(ctx, key)
			So(err, ShouldNotBeNil)

			_, _, err = client.Lookup(ctx, key)
			So(errors.Is(err, gobreaker.ErrOpenState), ShouldBeTrue)
			So(api.queries, ShouldHaveLength, 2)
		})
	})

	Convey("Given searches abandoned by the caller", t, func() {
		api := &fakeAPI{}
		client, done := newTestClient(api, spotify.WithBreaker(2, time.Minute))
		defer done()
		key := model.TrackKey{Artist: "Massive Attack", Title: "Teardrop"}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		Convey("Then they do not open the breaker", func() {
			for i := 0; i < 3; i++ {
				_, _, err := client.Lookup(cancelled, key)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			}

			id, ok, err := client.Lookup(ctx, key)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "trk1")
		})
	})
}

func TestPlaylist(t *testing.T) {
	ctx := context.Background()

	Convey("Given a signed-in user", t, func() {
		api := &fakeAPI{}
		client, done := newTestClient(api, spotify.WithPublic(false))
		defer done()

		Convey("When a playlist is created and filled", func() {
			id, err := client.CreatePlaylist(ctx, "Earworms")
			So(err, ShouldBeNil)
			So(client.AddItems(ctx, id, []string{"a1", "b2"}), ShouldBeNil)
			So(client.AddItems(ctx, id, nil), ShouldBeNil)

			Convey("Then the playlist and items reach the API in order", func() {
				So(id, ShouldEqual, "pl1")
				So(api.created["name"], ShouldEqual, "Earworms")
				So(api.created["public"], ShouldEqual, false)
				So(api.added, ShouldResemble, [][]string{{"spotify:track:a1", "spotify:track:b2"}})
			})
		})

		Convey("When the playlist does not exist", func() {
			err := client.AddItems(ctx, "missing", []string{"a1"})
			So(err, ShouldNotBeNil)
		})
	})
}
