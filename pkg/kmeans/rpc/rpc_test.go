package rpc

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
--------------------------------------------------------------------------------
Section for utils.
--------------------------------------------------------------------------------
*/

// Two well separated groups on a line.
var twoGroups = []kmeans.Observation{{0, 0}, {1, 0}, {10, 0}, {11, 0}}

// counterOf reads a per-namespace counter from metrics.Registry, 0 if absent.
func counterOf(t *testing.T, name, namespace string) float64 {
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "namespace" && l.GetValue() == namespace {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// Fixed seed so board starts are reproducible.
func seededFactory(observations []kmeans.Observation, k int, _ int64) (*kmeans.Session, error) {
	return kmeans.New(observations, k, kmeans.WithSeed(1))
}

/*
--------------------------------------------------------------------------------
Section for utils 2, here lies a type (and methods) that is used to
test/simulate a test network.
--------------------------------------------------------------------------------
*/

type tNetwork struct {
	nodes     []*KMeansServer
	stopFuncs []func()
}

func newTNetwork(n int) tNetwork {
	tn := tNetwork{}
	for i := 0; i < n; i++ {
		s := NewKMeansServer("127.0.0.1:0", seededFactory)
		stop, err := StartListen(s)
		if err != nil {
			panic(fmt.Sprintf("couldn't start server: %v", err))
		}
		tn.nodes = append(tn.nodes, s)
		tn.stopFuncs = append(tn.stopFuncs, stop)
	}
	return tn
}

func (tn *tNetwork) stop() {
	for _, f := range tn.stopFuncs {
		f()
	}
}

func (tn *tNetwork) reset() {
	for _, node := range tn.nodes {
		node.Table.Reset()
	}
}

func (tn *tNetwork) addr(i int) string { return tn.nodes[i].ListenAddr }

// A test network for all tests in this file, cleaned with 'defer
// network.reset()' and stopped in TestCleanup.
var network = newTNetwork(2)

/*
--------------------------------------------------------------------------------
Section for Board tests.
--------------------------------------------------------------------------------
*/

func TestBoardStage(t *testing.T) {
	b := NewBoard(DefaultSpeed)

	n, err := b.Stage(twoGroups[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Dimensionality is decided by what is already staged.
	n, err = b.Stage([]kmeans.Observation{{1, 2, 3}})
	assert.True(t, errors.Is(err, kmeans.ErrDimensionMismatch))
	assert.Equal(t, 2, n)

	// Staged observations are copies.
	in := []kmeans.Observation{{5, 5}}
	_, err = b.Stage(in)
	require.NoError(t, err)
	in[0][0] = 100
	assert.Equal(t, []float64{5, 5}, b.Pending[2])
}

func TestBoardStartCarriesObservations(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, err := b.Stage(twoGroups[:2])
	require.NoError(t, err)
	require.NoError(t, b.Start(1, 0, seededFactory))

	assert.True(t, b.Running)
	assert.Empty(t, b.Pending)
	assert.Equal(t, 2, b.Session.Len())

	// Restart: old observations first, then whatever was staged.
	_, err = b.Stage(twoGroups[2:])
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))
	assert.Equal(t, twoGroups, b.Session.Observations())
	assert.Equal(t, 0, b.Session.Iteration())
}

func TestBoardStartInvalid(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, err := b.Stage(twoGroups[:2])
	require.NoError(t, err)

	err = b.Start(3, 0, seededFactory)
	assert.True(t, errors.Is(err, kmeans.ErrInvalidConfiguration))
	assert.Nil(t, b.Session)
	assert.False(t, b.Running)
	assert.Len(t, b.Pending, 2)
}

func TestBoardStep(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, err := b.Step()
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = b.Stage(twoGroups)
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))

	_, err = b.Stage([]kmeans.Observation{{12, 0}})
	require.NoError(t, err)
	empty, err := b.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, empty)
	assert.Empty(t, b.Pending)
	assert.Equal(t, 5, b.Session.Len())
	assert.Equal(t, 1, b.Session.Iteration())
}

func TestBoardAdvance(t *testing.T) {
	b := NewBoard(1)
	_, err := b.Stage(twoGroups)
	require.NoError(t, err)

	// Not started.
	stepped, _, err := b.Advance()
	require.NoError(t, err)
	assert.False(t, stepped)

	require.NoError(t, b.Start(2, 0, seededFactory))

	// Speed 1 steps every 10th tick.
	steps := 0
	for i := 0; i < 30; i++ {
		stepped, _, err := b.Advance()
		require.NoError(t, err)
		if stepped {
			steps++
		}
	}
	assert.Equal(t, 3, steps)

	// Speed 10 steps every tick.
	b.Speed = MaxSpeed
	stepped, _, err = b.Advance()
	require.NoError(t, err)
	assert.True(t, stepped)

	b.Running = false
	stepped, _, err = b.Advance()
	require.NoError(t, err)
	assert.False(t, stepped)
}

// Steps must be evenly spaced no matter how long a board runs.
func TestBoardAdvanceEvenlySpaced(t *testing.T) {
	for speed := 1; speed < MaxSpeed; speed++ {
		b := NewBoard(speed)
		_, err := b.Stage(twoGroups)
		require.NoError(t, err)
		require.NoError(t, b.Start(2, 0, seededFactory))

		skip := b.skip()
		last := -1
		for i := 0; i < 2500; i++ {
			stepped, _, err := b.Advance()
			require.NoError(t, err)
			if !stepped {
				continue
			}
			if last >= 0 {
				require.Equalf(t, skip, i-last, "speed %d, tick %d", speed, i)
			}
			last = i
		}
		assert.Equal(t, 2500/skip, b.Session.Iteration(), "speed %d", speed)
	}
}

func TestBoardAdvanceRestartsCount(t *testing.T) {
	b := NewBoard(1)
	_, err := b.Stage(twoGroups)
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))

	for i := 0; i < 9; i++ {
		b.Advance()
	}
	require.Equal(t, 0, b.Session.Iteration())

	// A new start needs a full interval again.
	require.NoError(t, b.Start(2, 0, seededFactory))
	stepped, _, err := b.Advance()
	require.NoError(t, err)
	assert.False(t, stepped)
}

func TestBoardSkip(t *testing.T) {
	tests := []struct {
		speed int
		skip  int
	}{
		{-3, 10}, {1, 10}, {2, 5}, {3, 3}, {5, 2}, {6, 1}, {10, 1}, {50, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.skip, (&Board{Speed: tc.speed}).skip(), "speed %d", tc.speed)
	}
}

func TestBoardConverge(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, _, err := b.Converge(0, 10, nil)
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = b.Stage(twoGroups)
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))

	steps, shift, err := b.Converge(0, 0, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, steps, DefaultConvergeSteps)
	assert.Equal(t, 0.0, shift)

	// Already converged, one more step moves nothing.
	steps, shift, err = b.Converge(0, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.Equal(t, 0.0, shift)

	// Threshold below zero is never reached.
	steps, shift, err = b.Converge(-1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, steps)
	assert.False(t, math.IsInf(shift, 1))
}

func TestBoardConvergeCapped(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, err := b.Stage(twoGroups)
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))

	steps, _, err := b.Converge(-1, MaxConvergeSteps*50, nil)
	require.NoError(t, err)
	assert.Equal(t, MaxConvergeSteps, steps)
	assert.Equal(t, MaxConvergeSteps, b.Session.Iteration())
}

func TestBoardConvergeReportsEachStep(t *testing.T) {
	// Two identical points give two identical centroids, so cluster 1 is
	// empty until the staged point pulls cluster 0 away.
	b := NewBoard(DefaultSpeed)
	_, err := b.Stage([]kmeans.Observation{{0, 0}, {0, 0}})
	require.NoError(t, err)
	require.NoError(t, b.Start(2, 0, seededFactory))
	_, err = b.Stage([]kmeans.Observation{{10, 0}})
	require.NoError(t, err)

	var empty []int
	steps, shift, err := b.Converge(0, 10, func(n int) { empty = append(empty, n) })
	require.NoError(t, err)
	assert.Equal(t, 3, steps)
	assert.Equal(t, 0.0, shift)
	assert.Equal(t, []int{1, 0, 0}, empty)
	assert.Equal(t, 0, b.Session.Degenerate())
}

func TestBoardSnapshot(t *testing.T) {
	b := NewBoard(DefaultSpeed)
	_, err := b.Stage(twoGroups)
	require.NoError(t, err)

	snap := b.Snapshot("ns")
	assert.Equal(t, "ns", snap.Namespace)
	assert.False(t, snap.Started)
	assert.Len(t, snap.Pending, 4)

	snap.Pending[0][0] = 99
	assert.Equal(t, 0.0, b.Pending[0][0])

	require.NoError(t, b.Start(2, 0, seededFactory))
	snap = b.Snapshot("ns")
	assert.True(t, snap.Started)
	assert.True(t, snap.Running)
	assert.Equal(t, 2, snap.State.K)
	assert.Len(t, snap.State.Labels, 4)
}

/*
--------------------------------------------------------------------------------
Section for BoardTable tests.
--------------------------------------------------------------------------------
*/

func TestBoardTable(t *testing.T) {
	table := NewBoardTable()
	assert.False(t, table.Access("a", func(*Board) {}))

	create := func() *Board { return NewBoard(DefaultSpeed) }
	assert.True(t, table.AccessOrCreate("b", create, func(*Board) {}))
	assert.False(t, table.AccessOrCreate("b", create, func(*Board) {}))
	assert.True(t, table.AccessOrCreate("a", create, func(*Board) {}))
	assert.Equal(t, []string{"a", "b"}, table.Namespaces())

	assert.True(t, table.Remove("a"))
	assert.False(t, table.Remove("a"))
	assert.Equal(t, 1, table.Len())

	table.Reset()
	assert.Empty(t, table.Namespaces())
}

func TestBoardTableConcurrentAccess(t *testing.T) {
	table := NewBoardTable()
	create := func() *Board { return NewBoard(DefaultSpeed) }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table.AccessOrCreate("ns", create, func(b *Board) {
				_, err := b.Stage([]kmeans.Observation{{float64(i), 0}})
				assert.NoError(t, err)
			})
		}(i)
	}
	wg.Wait()

	table.Access("ns", func(b *Board) {
		assert.Len(t, b.Pending, 50)
	})
}

/*
--------------------------------------------------------------------------------
Section for server/client tests.
--------------------------------------------------------------------------------
*/

func TestAddr(t *testing.T) {
	addr, err := AddrFromStr("localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, Addr{IP: "localhost", Port: "3000"}, addr)
	assert.Equal(t, "localhost:3000", addr.ToStr())
	assert.True(t, addr.Comp(Addr{IP: "localhost", Port: "3000"}))

	_, err = AddrFromStr("nope")
	assert.Error(t, err)
}

func TestObserveAndStart(t *testing.T) {
	defer network.reset()
	addr := network.addr(0)

	var err error
	pending := KMeansClient(addr, "test", &err).Observe(twoGroups)
	require.NoError(t, err)
	assert.Equal(t, 4, pending)

	namespaces := KMeansClient(addr, "", &err).Namespaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, namespaces)

	resp := KMeansClient(addr, "test", &err).Start(2, 0)
	require.NoError(t, err)
	assert.Equal(t, StartResp{Observations: 4, K: 2}, resp)

	snap := KMeansClient(addr, "test", &err).Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Running)
	assert.Equal(t, twoGroups, snap.State.Observations)
	assert.Equal(t, DefaultSpeed, snap.Speed)

	// Boards are per node.
	KMeansClient(network.addr(1), "test", &err).Snapshot()
	assert.Equal(t, NamespaceErr{"test"}, err)
}

func TestRemoteErrors(t *testing.T) {
	defer network.reset()
	addr := network.addr(0)

	var err error
	KMeansClient(addr, "missing", &err).Step()
	var nsErr NamespaceErr
	assert.True(t, errors.As(err, &nsErr))

	err = nil
	KMeansClient(addr, "test", &err).Observe(twoGroups[:1])
	require.NoError(t, err)

	KMeansClient(addr, "test", &err).Step()
	assert.ErrorIs(t, err, ErrNotStarted)

	err = nil
	KMeansClient(addr, "test", &err).Start(2, 0)
	assert.ErrorIs(t, err, kmeans.ErrInvalidConfiguration)
	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Contains(t, remoteErr.Msg, "k=2")

	err = nil
	KMeansClient(addr, "test", &err).Observe([]kmeans.Observation{{1}})
	assert.ErrorIs(t, err, kmeans.ErrDimensionMismatch)

	// Network errors are passed through as they are.
	err = nil
	KMeansClient("127.0.0.1:1", "test", &err).Namespaces()
	assert.Error(t, err)
	assert.False(t, errors.As(err, &remoteErr))
}

func TestStepAndAdvance(t *testing.T) {
	defer network.reset()
	addr := network.addr(0)

	var err error
	c := KMeansClient(addr, "test", &err)
	c.Observe(twoGroups)
	c.Start(2, 0)
	c.Observe([]kmeans.Observation{{12, 0}})
	require.NoError(t, err)

	snap := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.State.Iteration)
	assert.Len(t, snap.State.Observations, 5)
	assert.Empty(t, snap.Pending)

	assert.Equal(t, MaxSpeed, c.SetSpeed(100))
	assert.True(t, c.Advance())

	c.Pause()
	assert.False(t, c.Advance())
	c.Resume()
	assert.True(t, c.Advance())

	// Speed 5 steps every second tick.
	c.SetSpeed(5)
	assert.False(t, c.Advance())
	assert.True(t, c.Advance())
	require.NoError(t, err)

	assert.Equal(t, 4, c.Snapshot().State.Iteration)
}

func TestConvergeAndMeta(t *testing.T) {
	defer network.reset()
	addr := network.addr(0)

	var err error
	c := KMeansClient(addr, "test", &err)
	c.Observe(twoGroups)
	c.Start(2, 0)
	resp := c.Converge(0, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Shift)
	assert.Greater(t, resp.Steps, 0)

	KMeansClient(addr, "other", &err).Observe(twoGroups[:1])
	meta := c.Meta()
	require.NoError(t, err)
	require.Len(t, meta.Items, 2)
	assert.Equal(t, 4, meta.Items["test"].Observations)
	assert.Equal(t, resp.Steps, meta.Items["test"].Iteration)
	assert.Equal(t, 1, meta.Items["other"].Pending)
	assert.False(t, meta.Items["other"].Running)
}

func TestConvergeMetricsPerStep(t *testing.T) {
	defer network.reset()
	ns := "converge-metrics"
	defer metrics.Observer.Forget(ns)

	var err error
	c := KMeansClient(network.addr(0), ns, &err)
	c.Observe([]kmeans.Observation{{0, 0}, {0, 0}})
	c.Start(2, 0)
	c.Observe([]kmeans.Observation{{10, 0}})
	resp := c.Converge(0, 10)
	require.NoError(t, err)
	require.Equal(t, 3, resp.Steps)

	assert.Equal(t, 3.0, counterOf(t, "kmboard_steps_total", ns))
	// Only the first step had an empty cluster.
	assert.Equal(t, 1.0, counterOf(t, "kmboard_empty_clusters_total", ns))
}

func TestReset(t *testing.T) {
	defer network.reset()
	addr := network.addr(0)

	var err error
	c := KMeansClient(addr, "test", &err)
	c.Observe(twoGroups)
	c.Reset()
	require.NoError(t, err)
	assert.Empty(t, c.Namespaces())

	c.Reset()
	assert.Equal(t, NamespaceErr{"test"}, err)
}

func TestCleanup(t *testing.T) {
	network.stop()
	// stop funcs are idempotent.
	network.stop()
}
