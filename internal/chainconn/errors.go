package chainconn

import "errors"

var (
	// ErrAllEndpointsUnavailable is returned when every configured RPC
	// endpoint's circuit breaker is open and none has recovered.
	ErrAllEndpointsUnavailable = errors.New("chainconn: all rpc endpoints unavailable")
	// ErrTimeout is returned when a call does not complete before its
	// context deadline.
	ErrTimeout = errors.New("chainconn: rpc call timed out")
	// ErrRPC wraps a transport or JSON-RPC-level failure.
	ErrRPC = errors.New("chainconn: rpc error")
)
