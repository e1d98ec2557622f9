// Package eventstore persists play events as a flat CSV table with the
// columns timestamp, artist and title.
package eventstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/earworms/internal/domain/model"
)

// Column names of the event log header.
const (
	ColumnTimestamp = "timestamp"
	ColumnArtist    = "artist"
	ColumnTitle     = "title"
)

var header = []string{ColumnTimestamp, ColumnArtist, ColumnTitle}

// File is an event log on disk.
type File struct {
	path string
}

// New returns the event log stored at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Exists reports whether the log has been saved before.
func (f *File) Exists() (bool, error) {
	_, err := os.Stat(f.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", f.path, err)
	}
}

// Load reads every event in file order.
func (f *File) Load(ctx context.Context) ([]model.PlayEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, f.path)
		}
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	events, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return events, nil
}

// Save replaces the log with events. The file is written to a temporary
// sibling and renamed into place, so readers never see a partial log.
func (f *File) Save(ctx context.Context, events []model.PlayEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := Write(tmp, events); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	return nil
}

// Read parses an event log. Columns are located by header name; extra
// columns are ignored.
func Read(r io.Reader) ([]model.PlayEvent, error) {
	cr := NewReader(r)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
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
	var idx [3]int
	for i, name := range header {
		c, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
		idx[i] = c
	}
	width := max(idx[0], idx[1], idx[2]) + 1

	var events []model.PlayEvent
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < width {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields, got %d", ErrMalformed, line, width, len(rec))
		}
		raw := rec[idx[0]]
		if raw == "" {
			return nil, fmt.Errorf("%w: line %d: missing timestamp", ErrMalformed, line)
		}
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad timestamp %q", ErrMalformed, line, raw)
		}
		events = append(events, model.PlayEvent{
			Artist:    rec[idx[1]],
			Title:     rec[idx[2]],
			Timestamp: ts,
		})
	}
	return events, nil
}

// Write emits the header followed by one row per event. Records end in "\n";
// a CR inside a value is quoted and kept as is.
func Write(w io.Writer, events []model.PlayEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, e := range events {
		row[0] = strconv.FormatInt(e.Timestamp, 10)
		row[1] = e.Artist
		row[2] = e.Title
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
