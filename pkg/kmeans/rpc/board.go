package rpc

import (
	"math"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/mathutils"
)

const (
	// MaxSpeed is the fastest a board can run: one step per Advance call.
	MaxSpeed = 10
	// DefaultSpeed is used for boards when nothing else is configured.
	DefaultSpeed = 5
	// DefaultConvergeSteps caps Board.Converge when no cap is given.
	DefaultConvergeSteps = 100
	// MaxConvergeSteps caps Board.Converge regardless of what is asked for,
	// the board is locked for the whole run.
	MaxConvergeSteps = 1000
)

// Board is one namespaced clustering run. Session is nil until the board is
// started; observations put into the board are staged in Pending and go into
// the session with the next step (or the next start).
type Board struct {
	Session *kmeans.Session
	Pending []kmeans.Observation
	Running bool
	Speed   int

	// ticks counts Advance calls while running, reset by Start.
	ticks uint64
}

// NewBoard creates an empty, stopped board.
func NewBoard(speed int) *Board {
	return &Board{Speed: clampSpeed(speed)}
}

func clampSpeed(speed int) int {
	if speed < 1 {
		return 1
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// dim is the dimensionality staged observations must have, 0 if nothing
// decides that yet.
func (b *Board) dim() int {
	if b.Session != nil {
		return b.Session.Dim()
	}
	if len(b.Pending) > 0 {
		return len(b.Pending[0])
	}
	return 0
}

// Stage appends copies of observations to Pending, returning the new amount
// of pending observations. Nothing is staged if any of them has the wrong
// dimensionality.
func (b *Board) Stage(observations []kmeans.Observation) (int, error) {
	if err := kmeans.ValidateObservations(observations, b.dim()); err != nil {
		return len(b.Pending), err
	}
	b.Pending = append(b.Pending, mathutils.VecsCopy(observations)...)
	return len(b.Pending), nil
}

// Start replaces the session with a new one over the observations of the
// previous session followed by the pending ones, then sets the board to run.
// On failure (typically fewer observations than k) the board is untouched.
func (b *Board) Start(k int, seed int64, f SessionFactoryF) error {
	var observations []kmeans.Observation
	if b.Session != nil {
		observations = b.Session.Observations()
	}
	observations = append(observations, b.Pending...)

	session, err := f(observations, k, seed)
	if err != nil {
		return err
	}
	b.Session = session
	b.Pending = nil
	b.Running = true
	b.ticks = 0
	return nil
}

// Step drains Pending into one session step. Returns the amount of empty
// clusters found while recomputing centroids.
func (b *Board) Step() (int, error) {
	if b.Session == nil {
		return 0, ErrNotStarted
	}
	pending := b.Pending
	if err := b.Session.Step(pending); err != nil {
		return 0, err
	}
	b.Pending = nil
	return b.Session.Degenerate(), nil
}

// skip is how many Advance calls go by per step; speed 10 steps every call,
// speed 1 every tenth.
func (b *Board) skip() int {
	skip := MaxSpeed / clampSpeed(b.Speed)
	if skip < 1 {
		return 1
	}
	return skip
}

// Advance is one timer tick. A running board steps on every skip()'th tick,
// counted by the board itself. The bool is true if a step was done.
func (b *Board) Advance() (bool, int, error) {
	if !b.Running || b.Session == nil {
		return false, 0, nil
	}
	b.ticks++
	if b.ticks%uint64(b.skip()) != 0 {
		return false, 0, nil
	}
	empty, err := b.Step()
	return err == nil, empty, err
}

// Converge steps until no centroid moves more than threshold or maxSteps
// steps are done (DefaultConvergeSteps if maxSteps < 1, never more than
// MaxConvergeSteps). onStep, if not nil, gets the amount of empty clusters
// of every step. Returns steps taken and the last shift.
func (b *Board) Converge(threshold float64, maxSteps int, onStep func(emptyClusters int)) (int, float64, error) {
	if b.Session == nil {
		return 0, 0, ErrNotStarted
	}
	if maxSteps < 1 {
		maxSteps = DefaultConvergeSteps
	}
	if maxSteps > MaxConvergeSteps {
		maxSteps = MaxConvergeSteps
	}

	shift := math.Inf(1)
	steps := 0
	for steps < maxSteps {
		before := b.Session.Centroids()
		empty, err := b.Step()
		if err != nil {
			return steps, shift, err
		}
		steps++
		if onStep != nil {
			onStep(empty)
		}
		shift = kmeans.MaxCentroidShift(before, b.Session.Centroids())
		if shift <= threshold {
			break
		}
	}
	return steps, shift, nil
}

// BoardSnapshot is a copy of everything a renderer needs from a board.
type BoardSnapshot struct {
	Namespace string               `json:"namespace"`
	Started   bool                 `json:"started"`
	Running   bool                 `json:"running"`
	Speed     int                  `json:"speed"`
	Pending   []kmeans.Observation `json:"pending"`
	State     kmeans.Snapshot      `json:"state"`
}

// Snapshot copies the board state.
func (b *Board) Snapshot(namespace string) BoardSnapshot {
	snap := BoardSnapshot{
		Namespace: namespace,
		Started:   b.Session != nil,
		Running:   b.Running,
		Speed:     b.Speed,
		Pending:   mathutils.VecsCopy(b.Pending),
	}
	if b.Session != nil {
		snap.State = b.Session.Snapshot()
	}
	return snap
}

// MetaDataItem is monitoring info about a single board.
type MetaDataItem struct {
	Observations  int
	Pending       int
	K             int
	Iteration     int
	EmptyClusters int
	Running       bool
	Speed         int
}

// MetaData is monitoring info about all boards of a server, keyed by
// namespace.
type MetaData struct {
	Items map[string]MetaDataItem
}

func (b *Board) metaDataItem() MetaDataItem {
	item := MetaDataItem{Pending: len(b.Pending), Running: b.Running, Speed: b.Speed}
	if b.Session != nil {
		item.Observations = b.Session.Len()
		item.K = b.Session.K()
		item.Iteration = b.Session.Iteration()
		item.EmptyClusters = b.Session.Degenerate()
	}
	return item
}
