package dedupe

const defaultMaxSize = 50_000

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize sets the maximum number of keys to remember.
// A value <= 0 disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
