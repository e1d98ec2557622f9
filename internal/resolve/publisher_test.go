package resolve_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/earworms/internal/resolve"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSink struct {
	created   []string
	batches   [][]string
	failAt    int // 1-based batch number that fails; 0 never
	createErr error
	calls     int
}

func (f *fakeSink) CreatePlaylist(_ context.Context, name string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, name)
	return "pl-1", nil
}

func (f *fakeSink) AddItems(_ context.Context, _ string, ids []string) error {
	f.calls++
	if f.calls == f.failAt {
		return errors.New("rate limited")
	}
	f.batches = append(f.batches, append([]string(nil), ids...))
	return nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%03d", i)
	}
	return out
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	Convey("Given 120 ids and the default batch size", t, func() {
		sink := &fakeSink{}
		pub, err := resolve.NewPublisher(sink)
		So(err, ShouldBeNil)

		res, err := pub.Publish(ctx, "Earworms", ids(120))

		Convey("Then they are added in order, 50 at a time", func() {
			So(err, ShouldBeNil)
			So(sink.created, ShouldResemble, []string{"Earworms"})
			So(sink.batches, ShouldHaveLength, 3)
			So(sink.batches[0], ShouldHaveLength, 50)
			So(sink.batches[2], ShouldHaveLength, 20)
			So(res.PlaylistID, ShouldEqual, "pl-1")
			So(res.Added, ShouldResemble, ids(120))
			So(res.Pending, ShouldBeEmpty)
		})
	})

	Convey("Given duplicate ids", t, func() {
		sink := &fakeSink{}
		pub, _ := resolve.NewPublisher(sink, resolve.WithBatchSize(2))

		res, err := pub.Publish(ctx, "x", []string{"a", "b", "a", "c", "b"})

		Convey("Then each id is added once at its first position", func() {
			So(err, ShouldBeNil)
			So(res.Added, ShouldResemble, []string{"a", "b", "c"})
			So(sink.batches, ShouldResemble, [][]string{{"a", "b"}, {"c"}})
		})
	})

	Convey("Given a sink that fails on the second batch", t, func() {
		sink := &fakeSink{failAt: 2}
		pub, _ := resolve.NewPublisher(sink, resolve.WithBatchSize(10))

		res, err := pub.Publish(ctx, "x", ids(25))

		Convey("Then the result reports added and pending ids", func() {
			So(errors.Is(err, resolve.ErrPartialPublish), ShouldBeTrue)
			So(res.Added, ShouldResemble, ids(25)[:10])
			So(res.Pending, ShouldResemble, ids(25)[10:])
		})

		Convey("Then Append retries only the remainder", func() {
			again, err := pub.Append(ctx, res.PlaylistID, res.Pending)
			So(err, ShouldBeNil)
			So(again.Added, ShouldResemble, ids(25)[10:])

			var all []string
			for _, b := range sink.batches {
				all = append(all, b...)
			}
			So(all, ShouldResemble, ids(25))
		})
	})

	Convey("Given a sink that cannot create playlists", t, func() {
		sink := &fakeSink{createErr: errors.New("forbidden")}
		pub, _ := resolve.NewPublisher(sink)

		res, err := pub.Publish(ctx, "x", []string{"a", "a", "b"})

		Convey("Then everything is pending", func() {
			So(err, ShouldNotBeNil)
			So(res.PlaylistID, ShouldBeEmpty)
			So(res.Pending, ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given an invalid batch size", t, func() {
		sink := &fakeSink{}
		pub, _ := resolve.NewPublisher(sink, resolve.WithBatchSize(500))
		_, err := pub.Publish(ctx, "x", ids(60))
		So(err, ShouldBeNil)
		So(sink.batches, ShouldHaveLength, 2)
	})

	Convey("Given no sink", t, func() {
		_, err := resolve.NewPublisher(nil)
		So(errors.Is(err, resolve.ErrNoSink), ShouldBeTrue)
	})
}
