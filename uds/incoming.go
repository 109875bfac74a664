// File: uds/incoming.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Infinite lazy sequence of accept outcomes over a Listener.

package uds

import (
	"context"
	"iter"
)

// Incoming is the acceptance sequence for a Listener. It owns the
// listener and nothing else; items are produced only as pulled, with at
// most one accept outcome in flight between pulls. The sequence never
// ends on its own: per-accept errors are yielded as items and the next
// pull serves the socket again.
type Incoming struct {
	listener *Listener
}

// Next pulls one accept outcome. The peer address is dropped at this
// boundary; downstream consumers only need the stream. A non-nil error
// is a single failed item, not the end of the sequence — except
// ctx.Err(), which reports cancellation of this pull without consuming
// an item.
func (in *Incoming) Next(ctx context.Context) (*Conn, error) {
	conn, _, err := in.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// All adapts the sequence to a range-over-func iterator. Iteration stops
// only when the consumer breaks or ctx is done; there is no natural end.
func (in *Incoming) All(ctx context.Context) iter.Seq2[*Conn, error] {
	return func(yield func(*Conn, error) bool) {
		for {
			conn, err := in.Next(ctx)
			if err != nil && ctx.Err() != nil {
				return
			}
			if !yield(conn, err) {
				return
			}
		}
	}
}

// Listener exposes the owned listener for introspection.
func (in *Incoming) Listener() *Listener { return in.listener }

// Close closes the owned listener.
func (in *Incoming) Close() error {
	return in.listener.Close()
}
