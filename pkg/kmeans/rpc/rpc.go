/*
This file and pkg is an RPC layer on top of the functionality in pkg/kmeans.
A KMeansServer keeps namespaced boards, each board being one clustering run
(a kmeans.Session plus whatever the user staged since the last step), and a
client (KMeansClient) mirrors every server endpoint.
*/
package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sort"
	"sync"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// Addr is a network address of a node.
type Addr struct {
	IP   string `toml:"ip" json:"ip"`
	Port string `toml:"port" json:"port"`
}

// ToStr formats the address as host:port.
func (a Addr) ToStr() string { return net.JoinHostPort(a.IP, a.Port) }

// Comp checks if two addresses are the same.
func (a Addr) Comp(other Addr) bool { return a == other }

// AddrFromStr parses host:port.
func AddrFromStr(s string) (Addr, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, err
	}
	return Addr{IP: host, Port: port}, nil
}

// NamespaceErr is a common error that might occur while doing remote call
// through kmeansClient (defined in this pkg). A KMeansServer holds multiple
// boards, each accessed through a namespace -- this err is used for
// namespaces that do not exist and won't be created.
type NamespaceErr struct{ namespace string }

const namespaceErrPrefix = "namespace not found"

func (nse NamespaceErr) Error() string {
	return fmt.Sprintf("%s: '%v'", namespaceErrPrefix, nse.namespace)
}

// ErrNotStarted is returned for operations that need a session on a board
// that only has staged observations.
var ErrNotStarted = errors.New("board not started")

// Private so it can only be used through the KMeansClient func, which forces
// an address and namespace specification.
type kmeansClient struct {
	remoteAddr string
	namespace  string
	err        *error
}

// KMeansClient forces a correct setup/use of the kmeansClient type, it
// contains methods that connect to a remote. It accepts a remote address,
// a board namespace, as well as an error (can be ignored with nil), which
// is set on connection/network issues or errors returned by the server.
// Example:
//	var err error
// 	snap := KMeansClient("localhost:3000", "someNamespace", &err).Snapshot()
//	if err != nil { ... }
func KMeansClient(remoteAddr, namespace string, err *error) *kmeansClient {
	if err == nil {
		var e error
		err = &e
	}
	return &kmeansClient{remoteAddr: remoteAddr, namespace: namespace, err: err}
}

/*
Note, below are a few types related to the rpc server implementation.
They (BoardSlot and BoardTable) are primarily used for data namespacing
in the context of concurrency. It generally works like so:

BoardTable contains a map where the keys are namespaces while vals are
BoardSlot, which keeps a Board. Both have a locking mechanism, such that one
Goroutine won't lock the entire system just by accessing one single board.

So lock the table -> access slot -> unlock table.
Lock slot -> do op -> unlock slot.

*/

// BoardSlot keeps a Board. Safe concurrency usage done with BoardSlot.Access.
type BoardSlot struct {
	board *Board
	sync.Mutex
}

// Access does a concurrency safe operation on the internal Board.
// Example:
//	x.Access(func(b *Board) { b.Running = false } )
func (s *BoardSlot) Access(f func(*Board)) {
	s.Lock()
	defer s.Unlock()

	f(s.board)
}

// BoardTable contains namespaced BoardSlot (i.e map). Its primary purpose
// is to prevent that a single Goroutine locks the entire system while using
// a slot, so there is a double locking mechanism (one in this type, another
// in BoardSlot). Safe concurrent access is done with BoardTable.Access.
type BoardTable struct {
	slots map[string]*BoardSlot
	sync.Mutex
}

// NewBoardTable creates an empty BoardTable.
func NewBoardTable() *BoardTable {
	return &BoardTable{slots: make(map[string]*BoardSlot)}
}

// Namespaces returns all namespaces, sorted.
func (t *BoardTable) Namespaces() []string {
	t.Lock()
	defer t.Unlock()

	namespaces := make([]string, 0, len(t.slots))
	for namespace := range t.slots {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	return namespaces
}

// Len returns the amount of boards.
func (t *BoardTable) Len() int {
	t.Lock()
	defer t.Unlock()
	return len(t.slots)
}

// Access does a concurrency safe access of the board behind 'namespace',
// which can be done with one Goroutine per namespace. False is returned only
// if the namespace doesn't exist.
func (t *BoardTable) Access(namespace string, f func(*Board)) bool {
	// Grab lock only for the map access, the slot has another lock for
	// accessing the board itself.
	t.Lock()
	slot, ok := t.slots[namespace]
	t.Unlock()

	if !ok {
		return false
	}
	slot.Access(f)
	return true
}

// AccessOrCreate is Access, but a board made with 'create' is put into the
// table first if the namespace doesn't exist. Returns true if created.
func (t *BoardTable) AccessOrCreate(namespace string, create func() *Board, f func(*Board)) bool {
	t.Lock()
	slot, ok := t.slots[namespace]
	if !ok {
		slot = &BoardSlot{board: create()}
		t.slots[namespace] = slot
	}
	t.Unlock()

	slot.Access(f)
	return !ok
}

// Remove drops a namespace. False if it didn't exist.
func (t *BoardTable) Remove(namespace string) bool {
	t.Lock()
	defer t.Unlock()

	if _, ok := t.slots[namespace]; !ok {
		return false
	}
	delete(t.slots, namespace)
	return true
}

// Reset drops all namespaces.
func (t *BoardTable) Reset() {
	t.Lock()
	defer t.Unlock()
	t.slots = make(map[string]*BoardSlot)
}

// SessionFactoryF is whatever creates a kmeans.Session for a board start. A
// zero seed means "no fixed seed".
type SessionFactoryF = func(observations []kmeans.Observation, k int, seed int64) (*kmeans.Session, error)

// NewSession is the default SessionFactoryF.
func NewSession(observations []kmeans.Observation, k int, seed int64) (*kmeans.Session, error) {
	if seed == 0 {
		return kmeans.New(observations, k)
	}
	return kmeans.New(observations, k, kmeans.WithSeed(seed))
}

// KMeansServer contains endpoint counterparts for kmeansClient (accessed
// with KMeansClient(...)).
type KMeansServer struct {
	// ListenAddr is the address associated with this server. StartListen
	// replaces it with the resolved one (relevant for port 0).
	ListenAddr string
	// Table with namespaced boards.
	Table *BoardTable
	// The server creates sessions when boards are started and will need
	// a way of doing that.
	SessionFactoryFunc SessionFactoryF
	// DefaultSpeed is the speed new boards get.
	DefaultSpeed int
}

// NewKMeansServer sets up (but doesn't start) a new KMeansServer. A nil 'f'
// falls back to NewSession.
func NewKMeansServer(addr string, f SessionFactoryF) *KMeansServer {
	if f == nil {
		f = NewSession
	}
	return &KMeansServer{
		ListenAddr:         addr,
		Table:              NewBoardTable(),
		SessionFactoryFunc: f,
		DefaultSpeed:       DefaultSpeed,
	}
}

// StartListen is a convenience func for starting an instance of
// KMeansServer -- it is not a method of that type because that would make
// Go complain (since it is an RPC server). Will return a func that can be
// used to stop the server; it closes the listener and all open connections.
func StartListen(s *KMeansServer) (stop func(), err error) {
	handler := rpc.NewServer()
	if err := handler.Register(s); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return nil, err
	}
	s.ListenAddr = ln.Addr().String()

	var mu sync.Mutex
	conns := make(map[net.Conn]struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			ln.Close()
			mu.Lock()
			defer mu.Unlock()
			for conn := range conns {
				conn.Close()
			}
		})
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				log.Debug().Err(err).Str("addr", s.ListenAddr).Msg("rpc listener stopped")
				return
			}
			mu.Lock()
			conns[conn] = struct{}{}
			mu.Unlock()
			go func() {
				handler.ServeConn(conn)
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
			}()
		}
	}()

	log.Info().Str("addr", s.ListenAddr).Msg("rpc node listening")
	return stop, nil
}

// reportBoards pushes the amount of boards to metrics.
func (s *KMeansServer) reportBoards() {
	metrics.Observer.Boards(s.Table.Len())
}
