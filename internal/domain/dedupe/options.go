package dedupe

type settings struct {
	capacity int
}

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*settings)

// WithCapacity pre-sizes the deduper for n ids.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}
