// Package detect implements the repetition detectors. Every detector is a
// pure function of the event log and returns at most one candidate per track,
// ordered by metric descending with ties kept in encounter order.
package detect

import (
	"slices"

	"github.com/okian/earworms/internal/domain/model"
)

// ConsecutiveRuns finds, per track, the longest run of back-to-back plays in
// the chronologically ordered events. Tracks whose longest run is shorter
// than minRepeats are left out.
func ConsecutiveRuns(events []model.PlayEvent, minRepeats int) []model.Candidate {
	best := make(map[model.TrackKey]int)
	var order []model.TrackKey

	flush := func(track model.TrackKey, run int) {
		if run < minRepeats {
			return
		}
		prev, seen := best[track]
		if !seen {
			order = append(order, track)
		}
		if run > prev {
			best[track] = run
		}
	}

	var current model.TrackKey
	run := 0
	for _, e := range events {
		key := e.Key()
		if run > 0 && key == current {
			run++
			continue
		}
		if run > 0 {
			flush(current, run)
		}
		current, run = key, 1
	}
	if run > 0 {
		flush(current, run)
	}

	return rank(order, best, model.Consecutive)
}

// rank turns a metric map into candidates sorted by metric descending.
// The stable sort keeps order as the tie-breaker.
func rank(order []model.TrackKey, metric map[model.TrackKey]int, m model.Model) []model.Candidate {
	out := make([]model.Candidate, 0, len(order))
	for _, track := range order {
		out = append(out, model.Candidate{Track: track, Metric: metric[track], Model: m})
	}
	slices.SortStableFunc(out, func(a, b model.Candidate) int {
		return b.Metric - a.Metric
	})
	return out
}
