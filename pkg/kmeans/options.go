package kmeans

import (
	"math/rand"
	"time"
)

type options struct {
	rng *rand.Rand
}

// Option configures a Session.
type Option func(*options)

// WithRand sets the random source used for initial centroid sampling.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// WithSeed is WithRand with a fresh source seeded by 'seed'.
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}
