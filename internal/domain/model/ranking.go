package model

import (
	"fmt"
	"strings"
)

// Model identifies one repetition-detection strategy.
type Model int

// Detection models, in the order they are merged.
const (
	Consecutive Model = iota
	Week
	Month
	Year
)

// Models lists every model in merge order.
func Models() []Model {
	return []Model{Consecutive, Week, Month, Year}
}

func (m Model) String() string {
	switch m {
	case Consecutive:
		return "consecutive"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// ParseModel is the inverse of Model.String.
func ParseModel(s string) (Model, error) {
	for _, m := range Models() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q", s)
}

// Candidate is one detector's finding for a track. Metric is the longest run
// (consecutive) or the most plays inside one window (windowed models).
type Candidate struct {
	Track  TrackKey
	Metric int
	Model  Model
}

// WeightedTrack is a Candidate scaled by its model weight.
type WeightedTrack struct {
	Track  TrackKey
	Weight int
	Reason string
	Model  Model
}

// RankedPlaylist is the deduplicated, weight-descending aggregation result.
type RankedPlaylist []WeightedTrack

// Keys returns the track keys in rank order.
func (p RankedPlaylist) Keys() []TrackKey {
	keys := make([]TrackKey, len(p))
	for i, t := range p {
		keys[i] = t.Track
	}
	return keys
}
