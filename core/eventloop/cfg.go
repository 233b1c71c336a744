package eventloop

import (
	"sync"
	"time"
)

// Each task in the event loop will be skippable such that not everything has
// to run in each loop iteration. This is useful when some tasks should run
// less often than others.
// Example:
//	int=1 : run on each loop.
//	int=2 : run every second loop.
//	int=3 : run every third loop.
//	etc...
// Values are clamped to [1, 1000], the loop iteration wraps at 1000, so a
// value that doesn't divide 1000 runs twice in a row at the wrap. Boards
// count their own ticks and don't depend on this.
type EventLoopTaskSkipConfig struct {
	// Advance triggers Advance for every board on the local node. Boards
	// apply their own speed on top of this, so a board at full speed steps
	// once per Advance.
	Advance int
	// Meta pulls metadata from the local node and hands it to the Logger.
	Meta int
}

// Clamps vals in EventLoopTaskSkipConfig (particularly useful for
// ensuring no zeros (zero div err when using modulus))
func (cfg *EventLoopTaskSkipConfig) clamp(min, max int) {
	items := []*int{
		&cfg.Advance,
		&cfg.Meta,
	}
	for _, v := range items {
		if *v < min {
			*v = min
		}
		if *v > max {
			*v = max
		}
	}
}

// iterWrap is where the loop iteration counter starts over.
const iterWrap = 1000

// DefaultTimeoutLoop is used when EventLoopConfig.TimeoutLoop isn't set.
const DefaultTimeoutLoop = time.Millisecond * 100

type eventLoopInternal struct {
	iter int
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type EventLoopConfig struct {
	// LocalAddr is the address of the rpc node this loop drives.
	LocalAddr string

	// Timeout for each loop iteration.
	TimeoutLoop time.Duration

	// Each task in the event loop will be skippable. See doc for
	// EventLoopTaskSkipConfig for more details.
	TaskSkip EventLoopTaskSkipConfig

	L Logger

	// Added by event loop.
	internal *eventLoopInternal
}

func (cfg *EventLoopConfig) validate() {
	if cfg == nil {
		panic("nil eventloop cfg")
	}
	if cfg.L == nil {
		cfg.L = &defaultLogger{localAddr: cfg.LocalAddr}
	}
	if cfg.internal == nil {
		cfg.internal = &eventLoopInternal{}
	}
	if cfg.TimeoutLoop <= 0 {
		cfg.TimeoutLoop = DefaultTimeoutLoop
	}

	cfg.TaskSkip.clamp(1, iterWrap)
}
