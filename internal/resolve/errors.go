package resolve

import "errors"

// Sentinel kinds for resolution and publication errors.
var (
	ErrPartialPublish = errors.New("playlist partially published")
	ErrNoCatalog      = errors.New("catalog is required")
	ErrNoSink         = errors.New("playlist sink is required")
)
