package pixcache

import (
	"context"
	"sync/atomic"

	"github.com/segmentio/ksuid"
)

const (
	opPending int32 = iota
	opCompleted
	opCancelled
)

// Operation is the handle returned by asynchronous engine calls. Cancel
// may be called from any goroutine at any time, including after
// completion (a no-op then). The operation's completion callback fires
// at most once, and never fires once a cancel has won the race.
type Operation struct {
	id     ksuid.KSUID
	state  atomic.Int32
	cancel context.CancelFunc
}

func newOperation(cancel context.CancelFunc) *Operation {
	return &Operation{
		id:     ksuid.New(),
		cancel: cancel,
	}
}

// ID returns a unique identifier for the operation.
func (o *Operation) ID() string {
	return o.id.String()
}

// Cancel requests that the operation stop and its completion callback be
// suppressed. Idempotent.
func (o *Operation) Cancel() {
	o.state.CompareAndSwap(opPending, opCancelled)
	if o.cancel != nil {
		o.cancel()
	}
}

// Cancelled reports whether Cancel won the race against completion.
func (o *Operation) Cancelled() bool {
	return o.state.Load() == opCancelled
}

// tryComplete claims the pending-to-completed transition. The completion
// callback may run only when it returns true.
func (o *Operation) tryComplete() bool {
	return o.state.CompareAndSwap(opPending, opCompleted)
}
