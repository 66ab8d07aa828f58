package actor

import (
	"runtime"
	"sync/atomic"
)

// action selects which invocation the worker loop performs: "Other" for
// a Running-mode actor (no message), "Dequeue" for a Waiting-mode actor
// (pop one message first). Matches spec section 4.3's Action enum.
type action int

const (
	actionOther action = iota
	actionDequeue
)

type runningMode int32

const (
	modeRunning runningMode = iota
	modeWaiting
)

// dispatchFunc is the type-erased closure a worker invokes to run one
// handler cycle. It captures the user's typed Handler[M], the slot's
// Pid[M], and its mailbox. hadMessage is only meaningful for
// actionDequeue: false means the mailbox was empty and the worker must
// stop draining this slot for the current visit without counting it
// against the per-cycle budget (spec section 4.3).
type dispatchFunc func(a action) (cont Continuation, hadMessage bool)

// slot is one of the Engine's N fixed process slots.
//
// Fields above the blank line are reached by any sender through the
// release lock (generation check + mailbox push, spec section 4.3's
// "Send"); fields below it are owned exclusively by whichever worker
// currently holds the slot, which the run-queue's single-consumer
// discipline guarantees is at most one goroutine at a time (spec section
// 3's "Exactly one worker thread drains a given slot at a time").
type slot struct {
	id uint32

	generation  atomic.Uint64
	releaseLock atomic.Bool
	mbox        mailbox
	idle        atomic.Bool

	mode                runningMode
	dispatch            dispatchFunc
	maxMessagesPerCycle int
	parent              int32
}

func newSlot(id uint32) *slot {
	s := &slot{id: id, parent: -1}
	return s
}

// reset increments the generation, clears the handler and mailbox, and
// is the only permitted path back to Free (spec section 3's lifecycle).
// Called by the worker that holds the slot after its handler returns
// Stop, so no concurrent reader needs to observe the worker-owned fields
// mid-update.
func (s *slot) reset() {
	spinLock(&s.releaseLock)
	s.generation.Add(1)
	s.mbox = nil
	s.dispatch = nil
	spinUnlock(&s.releaseLock)
	s.mode = modeRunning
	s.parent = -1
	s.idle.Store(false)
}

func spinLock(b *atomic.Bool) {
	for !b.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func spinUnlock(b *atomic.Bool) {
	b.Store(false)
}

func spinTryLock(b *atomic.Bool) bool {
	return b.CompareAndSwap(false, true)
}
