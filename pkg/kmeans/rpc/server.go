package rpc

import (
	"errors"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// Reduces some boilerplate by doing the '!lookupOK { ... } return nil' thing.
func (s *KMeansServer) handleNamespaceErr(ns string, f func(*Board)) error {
	lookupOK := s.Table.Access(ns, f)
	if !lookupOK {
		return NamespaceErr{ns}
	}
	return nil
}

// Namespaces lists the namespaces of all boards. The argument is unused
// (gob won't send a nil one).
func (s *KMeansServer) Namespaces(_ int, resp *[]string) error {
	*resp = s.Table.Namespaces()
	return nil
}

type ObserveArgs struct {
	NameSpace    string
	Observations []kmeans.Observation
}

// Observe stages observations on a board, creating it if it doesn't exist.
// Resp is the amount of pending observations afterwards.
func (s *KMeansServer) Observe(args ObserveArgs, resp *int) error {
	var err error
	created := s.Table.AccessOrCreate(
		args.NameSpace,
		func() *Board { return NewBoard(s.DefaultSpeed) },
		func(b *Board) { *resp, err = b.Stage(args.Observations) },
	)
	if created {
		log.Debug().Str("namespace", args.NameSpace).Msg("board created")
		s.reportBoards()
	}
	return err
}

type StartArgs struct {
	NameSpace string
	K         int
	// Seed for centroid initialisation, zero for a random one.
	Seed int64
}

type StartResp struct {
	Observations int
	K            int
}

// Start (re)starts a board, see Board.Start.
func (s *KMeansServer) Start(args StartArgs, resp *StartResp) error {
	var err error
	lookupErr := s.handleNamespaceErr(args.NameSpace, func(b *Board) {
		err = b.Start(args.K, args.Seed, s.SessionFactoryFunc)
		if err == nil {
			*resp = StartResp{Observations: b.Session.Len(), K: b.Session.K()}
		}
	})
	if lookupErr != nil {
		return lookupErr
	}

	if err != nil {
		if errors.Is(err, kmeans.ErrInvalidConfiguration) {
			metrics.Observer.InvalidStart(args.NameSpace)
		}
		log.Warn().Err(err).Str("namespace", args.NameSpace).Int("k", args.K).Msg("start rejected")
		return err
	}

	metrics.Observer.Started(args.NameSpace, resp.Observations)
	log.Info().Str("namespace", args.NameSpace).Int("k", resp.K).
		Int("observations", resp.Observations).Msg("board started")
	return nil
}

// Step does one step on a board right away, regardless of it running or not.
func (s *KMeansServer) Step(namespace string, resp *BoardSnapshot) error {
	var err error
	lookupErr := s.handleNamespaceErr(namespace, func(b *Board) {
		var empty int
		if empty, err = b.Step(); err != nil {
			return
		}
		metrics.Observer.Step(namespace, b.Session.Len(), empty)
		*resp = b.Snapshot(namespace)
	})
	if lookupErr != nil {
		return lookupErr
	}
	return err
}

// Advance is the timer driven step, see Board.Advance. Resp is true if a
// step was done.
func (s *KMeansServer) Advance(namespace string, resp *bool) error {
	var err error
	lookupErr := s.handleNamespaceErr(namespace, func(b *Board) {
		var empty int
		*resp, empty, err = b.Advance()
		if *resp {
			metrics.Observer.Step(namespace, b.Session.Len(), empty)
		}
	})
	if lookupErr != nil {
		return lookupErr
	}
	return err
}

// Pause stops a board from being advanced.
func (s *KMeansServer) Pause(namespace string, _ *int) error {
	return s.handleNamespaceErr(namespace, func(b *Board) {
		b.Running = false
	})
}

// Resume lets a started board be advanced again.
func (s *KMeansServer) Resume(namespace string, _ *int) error {
	var err error
	lookupErr := s.handleNamespaceErr(namespace, func(b *Board) {
		if b.Session == nil {
			err = ErrNotStarted
			return
		}
		b.Running = true
	})
	if lookupErr != nil {
		return lookupErr
	}
	return err
}

type SpeedArgs struct {
	NameSpace string
	Speed     int
}

// SetSpeed sets board speed, clamped to [1, MaxSpeed]. Resp is the speed
// that was set.
func (s *KMeansServer) SetSpeed(args SpeedArgs, resp *int) error {
	return s.handleNamespaceErr(args.NameSpace, func(b *Board) {
		b.Speed = clampSpeed(args.Speed)
		*resp = b.Speed
	})
}

// Reset drops a board along with its session and pending observations.
func (s *KMeansServer) Reset(namespace string, _ *int) error {
	if !s.Table.Remove(namespace) {
		return NamespaceErr{namespace}
	}
	metrics.Observer.Forget(namespace)
	s.reportBoards()
	log.Info().Str("namespace", namespace).Msg("board reset")
	return nil
}

// Snapshot copies out the state of a board.
func (s *KMeansServer) Snapshot(namespace string, resp *BoardSnapshot) error {
	return s.handleNamespaceErr(namespace, func(b *Board) {
		*resp = b.Snapshot(namespace)
	})
}

type ConvergeArgs struct {
	NameSpace string
	Threshold float64
	MaxSteps  int
}

type ConvergeResp struct {
	Steps int
	Shift float64
}

// Converge steps a board until its centroids settle, see Board.Converge.
func (s *KMeansServer) Converge(args ConvergeArgs, resp *ConvergeResp) error {
	var err error
	lookupErr := s.handleNamespaceErr(args.NameSpace, func(b *Board) {
		resp.Steps, resp.Shift, err = b.Converge(args.Threshold, args.MaxSteps, func(empty int) {
			metrics.Observer.Step(args.NameSpace, b.Session.Len(), empty)
		})
	})
	if lookupErr != nil {
		return lookupErr
	}
	return err
}

// Meta collects monitoring info of all boards.
func (s *KMeansServer) Meta(_ int, resp *MetaData) error {
	resp.Items = make(map[string]MetaDataItem)
	for _, namespace := range s.Table.Namespaces() {
		// Board might be reset between the two calls, just skip it then.
		s.Table.Access(namespace, func(b *Board) {
			resp.Items[namespace] = b.metaDataItem()
		})
	}
	return nil
}
