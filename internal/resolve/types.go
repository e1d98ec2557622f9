// Package resolve maps ranked tracks to catalog ids, escalating unmatched
// tracks to a correction loop, and publishes the result as a playlist.
package resolve

import (
	"context"

	"github.com/okian/earworms/internal/domain/model"
)

// Catalog finds the id of a track in the external music service.
type Catalog interface {
	Lookup(ctx context.Context, key model.TrackKey) (id string, found bool, err error)
}

// CorrectionStore persists user-supplied replacements.
type CorrectionStore interface {
	Lookup(ctx context.Context, original model.TrackKey) (model.TrackKey, bool, error)
	// Append stores a correction; it reports false when one already exists.
	Append(ctx context.Context, original, replacement model.TrackKey) (bool, error)
}

// Escalator decides what to do with a track the catalog could not match.
type Escalator interface {
	Escalate(ctx context.Context, key model.TrackKey) (Decision, error)
}

// TrackScope is implemented by escalators that can abandon a single track.
// The returned context is cancelled when the operator gives up on the track,
// covering both the prompt and the catalog search that follows an answer.
// release must be called once the track is settled.
type TrackScope interface {
	Track(ctx context.Context) (tctx context.Context, release func())
}

// Action is the outcome of an escalation.
type Action int

// Escalation outcomes.
const (
	Retry Action = iota
	Substitute
	Skip
)

func (a Action) String() string {
	switch a {
	case Retry:
		return "retry"
	case Substitute:
		return "substitute"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision is an escalation answer. Replacement is set for Substitute.
type Decision struct {
	Action      Action
	Replacement model.TrackKey
}

// Resolution is the outcome for one ranked track. Resolved is the key the
// catalog matched, or the last key tried when Skipped.
type Resolution struct {
	Track     model.TrackKey
	Resolved  model.TrackKey
	CatalogID string
	Skipped   bool
}

// CatalogIDs returns the ids of resolved tracks in rank order.
func CatalogIDs(resolutions []Resolution) []string {
	ids := make([]string, 0, len(resolutions))
	for _, r := range resolutions {
		if r.Skipped || r.CatalogID == "" {
			continue
		}
		ids = append(ids, r.CatalogID)
	}
	return ids
}

type noCorrections struct{}

func (noCorrections) Lookup(context.Context, model.TrackKey) (model.TrackKey, bool, error) {
	return model.TrackKey{}, false, nil
}

func (noCorrections) Append(context.Context, model.TrackKey, model.TrackKey) (bool, error) {
	return false, nil
}
