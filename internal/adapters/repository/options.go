package repository

// DefaultCapacity matches the collector's retention window.
const DefaultCapacity = 500

// Option applies a configuration option to the RingStore.
type Option func(*RingStore)

// WithCapacity sets how many events are retained.
func WithCapacity(n int) Option {
	return func(s *RingStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}
