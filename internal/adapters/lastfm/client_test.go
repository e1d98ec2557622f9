package lastfm_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/earworms/internal/adapters/lastfm"
	"github.com/okian/earworms/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const pageOne = `{"recenttracks":{"track":[
 {"artist":{"#text":"Radiohead"},"name":"Reckoner","@attr":{"nowplaying":"true"}},
 {"artist":{"#text":"Radiohead"},"name":"Reckoner","date":{"uts":"300","#text":"x"}},
 {"artist":{"#text":"Air"},"name":"La femme d'argent","date":{"uts":"200"}}
],"@attr":{"user":"rj","page":"1","perPage":"2","totalPages":"2","total":"3"}}}`

const pageTwo = `{"recenttracks":{"track":
 {"artist":{"#text":"Portishead"},"name":"Roads, \"live\"","date":{"uts":"100"}}
,"@attr":{"user":"rj","page":"2","perPage":"2","totalPages":"2","total":"3"}}}`

func newClient(base string, opts ...lastfm.Option) *lastfm.Client {
	opts = append([]lastfm.Option{
		lastfm.WithBaseURL(base),
		lastfm.WithRatePerSecond(0),
		lastfm.WithRetry(2, time.Millisecond),
	}, opts...)
	c, err := lastfm.New("key", opts...)
	So(err, ShouldBeNil)
	return c
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a two page history", t, func() {
		var calls atomic.Int32
		var lastQuery atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			lastQuery.Store(r.URL.Query())
			switch r.URL.Query().Get("page") {
			case "1":
				fmt.Fprint(w, pageOne)
			default:
				fmt.Fprint(w, pageTwo)
			}
		}))
		defer srv.Close()

		client := newClient(srv.URL, lastfm.WithPageSize(2))

		Convey("When fetching", func() {
			events, err := client.Fetch(ctx, "rj")

			Convey("Then every page is read and events come back oldest first", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 2)
				So(events, ShouldResemble, []model.PlayEvent{
					{Artist: "Portishead", Title: `Roads, "live"`, Timestamp: 100},
					{Artist: "Air", Title: "La femme d'argent", Timestamp: 200},
					{Artist: "Radiohead", Title: "Reckoner", Timestamp: 300},
				})
			})

			Convey("Then the request carries the api parameters", func() {
				q := lastQuery.Load().(url.Values)
				So(q["method"], ShouldResemble, []string{"user.getrecenttracks"})
				So(q["user"], ShouldResemble, []string{"rj"})
				So(q["api_key"], ShouldResemble, []string{"key"})
				So(q["format"], ShouldResemble, []string{"json"})
				So(q["limit"], ShouldResemble, []string{"2"})
			})
		})
	})

	Convey("Given an api error payload", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":6,"message":"User not found"}`)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Fetch(ctx, "ghost")

		Convey("Then ErrAPI is returned with the message", func() {
			So(errors.Is(err, lastfm.ErrAPI), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "User not found")
		})
	})

	Convey("Given a transient server failure", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, pageTwo)
		}))
		defer srv.Close()

		events, err := newClient(srv.URL).Fetch(ctx, "rj")

		Convey("Then the page is retried", func() {
			So(err, ShouldBeNil)
			So(calls.Load(), ShouldEqual, 2)
			So(events, ShouldHaveLength, 1)
		})
	})

	Convey("Given an empty history", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"recenttracks":{"track":[],"@attr":{"page":"1","totalPages":"0"}}}`)
		}))
		defer srv.Close()

		events, err := newClient(srv.URL).Fetch(ctx, "rj")
		So(err, ShouldBeNil)
		So(events, ShouldBeEmpty)
	})

	Convey("Given garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `<html>`)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Fetch(ctx, "rj")
		So(errors.Is(err, lastfm.ErrDecode), ShouldBeTrue)
	})
}

func TestNew(t *testing.T) {
	Convey("Given missing credentials", t, func() {
		_, err := lastfm.New("")
		So(errors.Is(err, lastfm.ErrMissingAPIKey), ShouldBeTrue)

		c, err := lastfm.New("key")
		So(err, ShouldBeNil)
		_, err = c.Fetch(context.Background(), "")
		So(errors.Is(err, lastfm.ErrMissingUser), ShouldBeTrue)
	})
}
