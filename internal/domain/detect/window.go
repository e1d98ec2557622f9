package detect

import (
	"slices"

	"github.com/okian/earworms/internal/domain/model"
)

// SlidingWindow finds, per track, the largest number of that track's plays
// spanning at most windowDays days (last minus first timestamp). A track is
// reported only when that number is strictly greater than minCount.
func SlidingWindow(events []model.PlayEvent, m model.Model, windowDays, minCount int) []model.Candidate {
	stamps, order := groupTimestamps(events)
	span := int64(windowDays) * model.SecondsPerDay

	counts := make(map[model.TrackKey]int)
	var kept []model.TrackKey
	for _, track := range order {
		ts := stamps[track]
		slices.Sort(ts)

		maxInWindow, start := 0, 0
		for end := range ts {
			for ts[end]-ts[start] > span {
				start++
			}
			maxInWindow = max(maxInWindow, end-start+1)
		}

		if maxInWindow > minCount {
			counts[track] = maxInWindow
			kept = append(kept, track)
		}
	}

	return rank(kept, counts, m)
}

// groupTimestamps collects each track's timestamps. The returned order lists
// tracks by first appearance so iteration is reproducible.
func groupTimestamps(events []model.PlayEvent) (map[model.TrackKey][]int64, []model.TrackKey) {
	stamps := make(map[model.TrackKey][]int64)
	var order []model.TrackKey
	for _, e := range events {
		key := e.Key()
		if _, ok := stamps[key]; !ok {
			order = append(order, key)
		}
		stamps[key] = append(stamps[key], e.Timestamp)
	}
	return stamps, order
}
