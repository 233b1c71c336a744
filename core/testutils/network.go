/*
Test utils for the core pkg. Contains a test network with nodes consisting
of KMeansServer (pkg/kmeans/rpc/), all listening on free local ports.
*/
package testutils

import (
	"fmt"

	"kmboard/pkg/kmeans"
	kmrpc "kmboard/pkg/kmeans/rpc"
)

type KMeansServer = kmrpc.KMeansServer
type Board = kmrpc.Board

// Seed is what every session in a test network is seeded with.
const Seed = 1

// NewSession is a seeded session factory, so tests can rely on centroid
// initialisation.
func NewSession(observations []kmeans.Observation, k int, _ int64) (*kmeans.Session, error) {
	return kmeans.New(observations, k, kmeans.WithSeed(Seed))
}

// NewKMeansServer creates a KMeansServer prefab on a free local port. The
// address is resolved when the node starts listening.
func NewKMeansServer() *KMeansServer {
	return kmrpc.NewKMeansServer("127.0.0.1:0", NewSession)
}

// Node is a node in TNetwork.
type Node struct {
	KMeansServer *KMeansServer
	StopFunc     func()
}

// Addr is the address the node listens on.
func (n *Node) Addr() string { return n.KMeansServer.ListenAddr }

// TNetwork is a test network.
type TNetwork struct {
	Addrs []string
	Nodes map[string]*Node
}

// NewTNetwork creates and starts a test network with n nodes.
func NewTNetwork(n int) TNetwork {
	tn := TNetwork{Nodes: make(map[string]*Node, n)}

	for i := 0; i < n; i++ {
		node := Node{KMeansServer: NewKMeansServer()}
		stop, err := kmrpc.StartListen(node.KMeansServer)
		if err != nil {
			panic(fmt.Sprintf("couldn't start test node: %v", err))
		}
		node.StopFunc = stop

		tn.Addrs = append(tn.Addrs, node.Addr())
		tn.Nodes[node.Addr()] = &node
	}

	return tn
}

// Stop stops the test network (kills servers).
func (tn *TNetwork) Stop() {
	for _, n := range tn.Nodes {
		if n.StopFunc != nil {
			n.StopFunc()
		}
	}
}

// Reset resets data in a test network (doesn't kill servers).
func (tn *TNetwork) Reset() {
	for _, node := range tn.Nodes {
		node.KMeansServer.Table.Reset()
	}
}

// UnwrapBoard is a convenience for inspecting a board in the test network.
// Not safu, the board is used without its lock. Nil if there is no board.
func (tn *TNetwork) UnwrapBoard(addr, namespace string) *Board {
	var r *Board
	node, ok := tn.Nodes[addr]
	if !ok {
		return nil
	}
	node.KMeansServer.Table.Access(namespace, func(b *Board) {
		r = b
	})
	return r
}
