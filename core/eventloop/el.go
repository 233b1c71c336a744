package eventloop

import (
	"time"

	"github.com/rs/zerolog/log"
)

// tick runs all tasks for the current iteration, then moves the iteration.
// Note: tasks are _not_ arbitrarily ordered.
func tick(cfg *EventLoopConfig) {
	eltAdvance(cfg)
	eltMeta(cfg)

	// Tick & wraparound.
	cfg.internal.iter++
	if cfg.internal.iter >= iterWrap {
		cfg.internal.iter = 0
	}
}

// EventLoop starts a goroutine which runs the tasks configured in cfg against
// the local node every cfg.TimeoutLoop. The returned func stops it; it can
// be called more than once and returns when the loop has exited.
func EventLoop(cfg *EventLoopConfig) (stop func()) {
	cfg.validate()
	internal := &eventLoopInternal{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	cfg.internal = internal

	go func() {
		defer close(internal.done)

		ticker := time.NewTicker(cfg.TimeoutLoop)
		defer ticker.Stop()

		for {
			select {
			case <-internal.stop:
				return
			case <-ticker.C:
				tick(cfg)
			}
		}
	}()

	log.Info().Str("node", cfg.LocalAddr).Dur("timeout", cfg.TimeoutLoop).Msg("event loop started")

	return func() {
		internal.once.Do(func() {
			close(internal.stop)
			log.Info().Str("node", cfg.LocalAddr).Msg("event loop stopping")
		})
		<-internal.done
	}
}
