package actor

import "context"

// Continuation is the decision a Handler returns after processing one
// invocation. It drives the worker's repush-or-reset choice (see
// Engine's worker loop in engine.go).
type Continuation int

const (
	// Continue keeps the actor in Running mode: the worker invokes the
	// handler again next cycle with no message (action "Other").
	Continue Continuation = iota
	// WaitMessage switches the actor to Waiting mode: the worker invokes
	// the handler again only once a message can be dequeued (action
	// "Dequeue").
	WaitMessage
	// Stop terminates the actor. Its slot is reset (generation bumped,
	// mailbox and handler cleared) and returned to the pool.
	Stop
)

// Context is passed to a Handler on every invocation.
type Context[M any] interface {
	// Self returns the Pid of the actor processing this invocation.
	Self() *Pid[M]
	// Message returns the message being processed and true, or the zero
	// value and false when this invocation carries no message (the
	// Running/"Other" action of spec section 4.3).
	Message() (M, bool)
	// Context carries the calling actor's identity for actor-originated
	// Spawn calls. See ParentSlot.
	Context() context.Context
}

// Handler is the per-actor callback. It is invoked with a message when
// the actor is in Waiting mode and one was dequeued, or with no message
// while the actor is in Running mode. See spec section 4.3's worker loop.
type Handler[M any] func(ctx Context[M]) Continuation

type ctxParentKey struct{}

// ParentSlot recovers the slot id of the actor that is calling Spawn, if
// any. Spawn reads this to record the parent the way the original
// thread-local "current process id" convention did; here it travels as a
// context.Context value threaded explicitly through dispatch instead of a
// hidden OS-thread-local, since goroutines are not pinned to OS threads.
func ParentSlot(ctx context.Context) (uint32, bool) {
	v, ok := ctx.Value(ctxParentKey{}).(uint32)
	return v, ok
}

type actorContext[M any] struct {
	self    *Pid[M]
	message M
	hasMsg  bool
	ctx     context.Context
}

func (c *actorContext[M]) Self() *Pid[M] { return c.self }

func (c *actorContext[M]) Message() (M, bool) { return c.message, c.hasMsg }

func (c *actorContext[M]) Context() context.Context { return c.ctx }
