package repository

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: weight DESC, then first-insert sequence ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the ranking from
// best to worst. Node priorities come from a hash of the track key, which
// keeps the tree balanced in expectation without any randomness.

// record stores the current best entry of a track plus its insert sequence.
type record struct {
	weight int
	seq    uint64
	reason string
	model  model.Model
}

type node struct {
	key    model.TrackKey
	weight int
	seq    uint64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aWeight, aSeq) should appear before (bWeight, bSeq).
func less(aWeight int, aSeq uint64, bWeight int, bSeq uint64) bool {
	if aWeight != bWeight {
		return aWeight > bWeight
	}
	return aSeq < bSeq
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func keyPriority(k model.TrackKey) uint64 {
	return xxhash.Sum64String(k.Artist + "\x00" + k.Title)
}

func insert(n *node, key model.TrackKey, weight int, seq uint64) *node {
	if n == nil {
		return &node{key: key, weight: weight, seq: seq, prio: keyPriority(key), size: 1}
	}
	if less(weight, seq, n.weight, n.seq) {
		n.left = insert(n.left, key, weight, seq)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, weight, seq)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, weight int, seq uint64) *node {
	if n == nil {
		return nil
	}
	if weight == n.weight && seq == n.seq {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, weight, seq)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, weight, seq)
		}
	} else if less(weight, seq, n.weight, n.seq) {
		n.left = deleteNode(n.left, weight, seq)
	} else {
		n.right = deleteNode(n.right, weight, seq)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, byKey map[model.TrackKey]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, byKey, out)
	if len(*out) < limit {
		rec := byKey[n.key]
		*out = append(*out, Entry{
			Rank:   len(*out) + 1,
			Track:  n.key,
			Weight: rec.weight,
			Reason: rec.reason,
			Model:  rec.model,
		})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, byKey, out)
	}
}

// position returns the 1-based in-order index of (weight, seq).
func position(n *node, weight int, seq uint64) int {
	pos := 0
	for n != nil {
		switch {
		case weight == n.weight && seq == n.seq:
			return pos + nsize(n.left) + 1
		case less(weight, seq, n.weight, n.seq):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// TreapStore keeps the best-weighted entry per track in rank order.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byKey   map[model.TrackKey]record
	nextSeq uint64
}

// NewTreapStore constructs an empty store.
func NewTreapStore() *TreapStore {
	return &TreapStore{byKey: make(map[model.TrackKey]record)}
}

// UpdateBest implements Store.UpdateBest in O(log n) expected time.
// An entry with equal weight does not replace the stored one, and a replaced
// track keeps its original sequence so ties stay in first-seen order.
func (s *TreapStore) UpdateBest(_ context.Context, e Entry) (bool, error) {
	if e.Weight <= 0 {
		metrics.RecordError("repository", "invalid_weight")
		return false, ErrInvalidWeight
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeq
	if old, ok := s.byKey[e.Track]; ok {
		if e.Weight <= old.weight {
			metrics.RecordMerge("discarded")
			return false, nil
		}
		s.root = deleteNode(s.root, old.weight, old.seq)
		seq = old.seq
		metrics.RecordMerge("replaced")
	} else {
		s.nextSeq++
		metrics.RecordMerge("inserted")
	}

	s.byKey[e.Track] = record{weight: e.Weight, seq: seq, reason: e.Reason, model: e.Model}
	s.root = insert(s.root, e.Track, e.Weight, seq)
	return true, nil
}

// Rank returns the current position and entry for a track in O(log n).
func (s *TreapStore) Rank(_ context.Context, track model.TrackKey) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[track]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:   position(s.root, rec.weight, rec.seq),
		Track:  track,
		Weight: rec.weight,
		Reason: rec.reason,
		Model:  rec.model,
	}, nil
}

// TopN returns the top n entries ordered by weight desc, ranks 1..n.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byKey)))
	collectTopN(s.root, n, s.byKey, &out)
	return out, nil
}

// Count returns the number of tracks held.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}
