// Package transport carries JSON-RPC 2.0 messages between the dispatch core
// and its peers.
//
// The Caller interface is the narrow contract remote providers are invoked
// through; Transport adds handler registration and a serving loop.
// StdioTransport implements Transport over newline-delimited JSON on a
// reader/writer pair, which covers both serving a client on the process's
// stdin/stdout and talking to an out-of-process plugin over pipes.
//
// # Reliability
//
// NewReliableCaller wraps any Caller with bounded retries, exponential
// backoff with jitter and a circuit breaker:
//
//	caller := transport.NewReliableCaller(stdio, transport.DefaultReliabilityConfig(), logger)
//
// JSON-RPC error replies from the peer are never retried.
package transport
