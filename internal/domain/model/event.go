// Package model contains domain models passed between layers.
package model

import "slices"

// SecondsPerDay converts window lengths in days to timestamp spans.
const SecondsPerDay int64 = 86400

// PlayEvent is a single recorded play (a scrobble). Identity is positional
// within the log; two plays of the same track at the same second are distinct.
type PlayEvent struct {
	Artist    string
	Title     string
	Timestamp int64 // seconds since epoch
}

// Key returns the grouping identity of the played track.
func (e PlayEvent) Key() TrackKey {
	return TrackKey{Artist: e.Artist, Title: e.Title}
}

// TrackKey identifies a track by exact artist and title. No case or
// whitespace normalization is applied; empty strings are valid values.
type TrackKey struct {
	Artist string
	Title  string
}

// String renders the key as "artist - title".
func (k TrackKey) String() string {
	return k.Artist + " - " + k.Title
}

// SortChronologically returns a copy of events ordered by timestamp.
// Plays sharing a timestamp keep their log order.
func SortChronologically(events []PlayEvent) []PlayEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b PlayEvent) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return out
}
