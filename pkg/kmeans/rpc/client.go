/*

Client for the RPC layer on top of pkg/kmeans. Has one method per
KMeansServer endpoint -- all use the address and namespace given to
KMeansClient and report failures through its error pointer.

*/
package rpc

import (
	"errors"
	"net/rpc"
	"strings"

	"kmboard/pkg/kmeans"
)

// RemoteError is an error returned by a remote KMeansServer. net/rpc only
// carries the message, so Unwrap gives back the matching local sentinel
// (kmeans.ErrInvalidConfiguration, kmeans.ErrDimensionMismatch,
// kmeans.ErrNonFinite, ErrNotStarted) when the message names one.
type RemoteError struct {
	Msg string
	err error
}

func (e *RemoteError) Error() string { return e.Msg }
func (e *RemoteError) Unwrap() error { return e.err }

var remoteSentinels = []error{
	kmeans.ErrInvalidConfiguration,
	kmeans.ErrDimensionMismatch,
	kmeans.ErrNonFinite,
	ErrNotStarted,
}

// remoteErr translates errors from rpc.Client.Call back into something that
// can be checked with errors.Is/As. Network errors are left as-is.
func (c *kmeansClient) remoteErr(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	if strings.HasPrefix(msg, namespaceErrPrefix) {
		return NamespaceErr{c.namespace}
	}
	for _, sentinel := range remoteSentinels {
		if strings.Contains(msg, sentinel.Error()) {
			return &RemoteError{Msg: msg, err: sentinel}
		}
	}
	return &RemoteError{Msg: msg}
}

// client tries to connect to a remote client with c.remoteAddr, give
// it to the task func, then clean the client up. It is meant to reduce
// some rpc boilerplate.
func (c *kmeansClient) client(taskF func(*rpc.Client)) {
	client, err := rpc.Dial("tcp", c.remoteAddr)
	if err != nil {
		*c.err = err
		return
	}
	defer client.Close()
	taskF(client)
}

// call does a single remote call, setting the client err.
func (c *kmeansClient) call(method string, args interface{}, resp interface{}) {
	c.client(func(rc *rpc.Client) {
		if err := rc.Call("KMeansServer."+method, args, resp); err != nil {
			*c.err = c.remoteErr(err)
		}
	})
}

// Namespaces fetches all namespaces stored in remote server.
func (c *kmeansClient) Namespaces() []string {
	var resp []string
	c.call("Namespaces", 0, &resp)
	return resp
}

// Observe stages observations on the remote board, which is created if the
// namespace doesn't exist. Returns the amount of pending observations.
func (c *kmeansClient) Observe(observations []kmeans.Observation) int {
	var resp int
	c.call("Observe", ObserveArgs{NameSpace: c.namespace, Observations: observations}, &resp)
	return resp
}

// Start (re)starts the remote board with k clusters. A zero seed lets the
// server pick one.
func (c *kmeansClient) Start(k int, seed int64) StartResp {
	var resp StartResp
	c.call("Start", StartArgs{NameSpace: c.namespace, K: k, Seed: seed}, &resp)
	return resp
}

// Step steps the remote board once and returns its state afterwards.
func (c *kmeansClient) Step() BoardSnapshot {
	var resp BoardSnapshot
	c.call("Step", c.namespace, &resp)
	return resp
}

// Advance is the timer driven step. True if the board was stepped.
func (c *kmeansClient) Advance() bool {
	var resp bool
	c.call("Advance", c.namespace, &resp)
	return resp
}

func (c *kmeansClient) Pause() {
	var resp int
	c.call("Pause", c.namespace, &resp)
}

func (c *kmeansClient) Resume() {
	var resp int
	c.call("Resume", c.namespace, &resp)
}

// SetSpeed returns the speed the remote actually set (clamped).
func (c *kmeansClient) SetSpeed(speed int) int {
	var resp int
	c.call("SetSpeed", SpeedArgs{NameSpace: c.namespace, Speed: speed}, &resp)
	return resp
}

func (c *kmeansClient) Reset() {
	var resp int
	c.call("Reset", c.namespace, &resp)
}

func (c *kmeansClient) Snapshot() BoardSnapshot {
	var resp BoardSnapshot
	c.call("Snapshot", c.namespace, &resp)
	return resp
}

// Converge steps the remote board until no centroid moves more than
// threshold, or maxSteps is reached.
func (c *kmeansClient) Converge(threshold float64, maxSteps int) ConvergeResp {
	var resp ConvergeResp
	args := ConvergeArgs{NameSpace: c.namespace, Threshold: threshold, MaxSteps: maxSteps}
	c.call("Converge", args, &resp)
	return resp
}

// Meta fetches monitoring info for all boards of the remote. The namespace
// of this client is ignored.
func (c *kmeansClient) Meta() MetaData {
	var resp MetaData
	c.call("Meta", 0, &resp)
	return resp
}
