// Package dedupe tracks catalog ids that were already placed in a playlist.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen ids.
type Deduper interface {
	// SeenAndRecord reports whether id was seen before and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int
}

type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	return &inMemoryDeduper{seen: make(map[string]struct{}, s.capacity)}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Unique returns ids with repeats removed, first occurrence first.
func Unique(ctx context.Context, d Deduper, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !d.SeenAndRecord(ctx, id) {
			out = append(out, id)
		}
	}
	return out
}
