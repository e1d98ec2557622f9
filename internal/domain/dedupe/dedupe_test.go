package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/earworms/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(8))

		Convey("When an id is new", func() {
			seen := d.SeenAndRecord(ctx, "trk-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an id repeats", func() {
			d.SeenAndRecord(ctx, "trk-1")
			seen := d.SeenAndRecord(ctx, "trk-1")

			Convey("Then it is reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

	})

	Convey("Given ids with repeats", t, func() {
		ids := []string{"b", "a", "b", "c", "a"}

		Convey("Then Unique keeps first occurrences in order", func() {
			So(dedupe.Unique(ctx, dedupe.NewInMemoryDeduper(), ids), ShouldResemble, []string{"b", "a", "c"})
		})
	})

	Convey("Given concurrent writers", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, fmt.Sprintf("trk-%d", i%10)) {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		So(fresh, ShouldEqual, 10)
		So(d.Size(), ShouldEqual, 10)
	})
}
