// Package corrections stores user-supplied (artist, title) substitutions in
// an append-only CSV file.
package corrections

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/okian/earworms/internal/adapters/eventstore"
	"github.com/okian/earworms/internal/domain/model"
)

var header = []string{"original_artist", "original_title", "new_artist", "new_title"}

// Cache maps an original track key to its replacement. It is loaded lazily
// on first use. Rows are only ever appended, so when an original appears more
// than once the latest row is the current correction.
type Cache struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries map[model.TrackKey]model.TrackKey
}

// New returns the cache stored at path. A missing file is an empty cache.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Lookup returns the stored replacement for original.
func (c *Cache) Lookup(ctx context.Context, original model.TrackKey) (model.TrackKey, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return model.TrackKey{}, false, err
	}
	repl, ok := c.entries[original]
	return repl, ok, nil
}

// Append persists a correction. It reports false without writing when the
// same replacement is already current for original; a different replacement
// is appended and supersedes the earlier row.
func (c *Cache) Append(ctx context.Context, original, replacement model.TrackKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return false, err
	}
	if cur, ok := c.entries[original]; ok && cur == replacement {
		return false, nil
	}

	fresh := false
	if info, err := os.Stat(c.path); errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		fresh = true
	}
	fh, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", c.path, err)
	}

	w := csv.NewWriter(fh)
	if fresh {
		if err := w.Write(header); err != nil {
			fh.Close()
			return false, fmt.Errorf("write %s: %w", c.path, err)
		}
	}
	if err := w.Write([]string{original.Artist, original.Title, replacement.Artist, replacement.Title}); err != nil {
		fh.Close()
		return false, fmt.Errorf("write %s: %w", c.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return false, fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := fh.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", c.path, err)
	}

	c.entries[original] = replacement
	return true, nil
}

// Len returns the number of distinct originals held.
func (c *Cache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return 0, err
	}
	return len(c.entries), nil
}

func (c *Cache) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fh, err := os.Open(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.entries = map[model.TrackKey]model.TrackKey{}
		c.loaded = true
		return nil
	case err != nil:
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer fh.Close()

	entries, err := parse(fh)
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	c.entries = entries
	c.loaded = true
	return nil
}

func parse(r io.Reader) (map[model.TrackKey]model.TrackKey, error) {
	cr := eventstore.NewReader(r)
	entries := map[model.TrackKey]model.TrackKey{}

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cols := make(map[string]int, len(head))
	for i, name := range head {
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	idx := make([]int, len(header))
	width := 0
	for i, name := range header {
		col, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
		idx[i] = col
		width = max(width, col+1)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if len(rec) < width {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, got %d", ErrMalformed, line, width, len(rec))
		}
		orig := model.TrackKey{Artist: rec[idx[0]], Title: rec[idx[1]]}
		entries[orig] = model.TrackKey{Artist: rec[idx[2]], Title: rec[idx[3]]}
	}
}
