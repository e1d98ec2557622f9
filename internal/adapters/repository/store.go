// Package repository holds the in-memory rank store that merges weighted
// tracks from every detection model.
package repository

import (
	"context"

	"github.com/okian/earworms/internal/domain/model"
)

// Entry is one ranked track.
type Entry struct {
	Rank   int
	Track  model.TrackKey
	Weight int
	Reason string
	Model  model.Model
}

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateBest stores e if its track is new or e outweighs the stored entry.
	// Returns true if the store changed.
	UpdateBest(ctx context.Context, e Entry) (bool, error)

	// Rank returns the current position and entry for a track.
	// Returns ErrNotFound if the track is unknown.
	Rank(ctx context.Context, track model.TrackKey) (Entry, error)

	// TopN returns the top-n entries ordered by weight desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of tracks held.
	Count(ctx context.Context) int
}
