// File: actor/engine.go
package actor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/lguibr/actorio/actor/queue"
	"golang.org/x/sync/errgroup"
)

type engineState int32

const (
	stateRunning engineState = iota
	stateStopped
)

// Engine is the fixed-capacity actor scheduler: N process slots drained
// by a pool of worker goroutines pulling from one shared run queue (spec
// section 4.3).
type Engine struct {
	processCapacity int
	slots           []*slot
	pool            *queue.Queue[uint32]
	runQueue        *queue.Queue[uint32]
	processCount    atomic.Int64
	state           atomic.Int32
	group           *errgroup.Group
}

// NewEngine creates an Engine with a fixed number of process slots and
// starts threadCount worker goroutines. processCapacity is fixed for the
// Engine's lifetime (spec section 6).
func NewEngine(processCapacity, threadCount int) *Engine {
	if processCapacity <= 0 {
		panic("actor: processCapacity must be positive")
	}
	if threadCount <= 0 {
		panic("actor: threadCount must be positive")
	}

	e := &Engine{
		processCapacity: processCapacity,
		slots:           make([]*slot, processCapacity),
		pool:            queue.New[uint32](processCapacity),
		runQueue:        queue.New[uint32](processCapacity),
	}
	for i := 0; i < processCapacity; i++ {
		e.slots[i] = newSlot(uint32(i))
		if _, ok := e.pool.Push(uint32(i)); !ok {
			panic("actor: slot pool push failed during construction")
		}
	}
	e.state.Store(int32(stateRunning))

	g := new(errgroup.Group)
	e.group = g
	for i := 0; i < threadCount; i++ {
		g.Go(func() error {
			e.workerLoop()
			return nil
		})
	}
	return e
}

// Capacity returns the fixed process capacity this Engine was built with.
func (e *Engine) Capacity() int { return e.processCapacity }

// ProcessCount returns the number of live actors, i.e. the number of
// slots not currently sitting in the free pool (spec section 8, testable
// property 1).
func (e *Engine) ProcessCount() int64 { return e.processCount.Load() }

// Spawn creates a new actor from props and schedules it to run. It
// returns (nil, false) when the Engine is at capacity (spec section
// 4.3's "Spawn"). parent should be the Context.Context() of the calling
// actor's invocation when spawning from within a Handler, or
// context.Background() when spawning from outside any actor; see
// ParentSlot for why this travels explicitly rather than through a
// hidden thread-local.
func Spawn[M any](e *Engine, parent context.Context, props Props[M]) (*Pid[M], bool) {
	count := e.processCount.Add(1)
	if count > int64(e.processCapacity) {
		e.processCount.Add(-1)
		return nil, false
	}

	var id uint32
	for {
		claimed, ok := e.pool.Pop()
		if ok {
			id = claimed
			break
		}
		runtime.Gosched()
	}

	s := e.slots[id]
	s.releaseLock.Store(false)
	s.idle.Store(false)
	if parentID, ok := ParentSlot(parent); ok {
		s.parent = int32(parentID)
	} else {
		s.parent = -1
	}

	mbox := newTypedMailbox[M](props.MailboxCapacity)
	s.mbox = mbox

	pid := &Pid[M]{
		slotID:     id,
		generation: s.generation.Load(),
		table:      e.slots,
		runQueue:   e.runQueue,
	}

	handler := props.Handler
	baseCtx := context.WithValue(context.Background(), ctxParentKey{}, id)

	s.dispatch = func(a action) (Continuation, bool) {
		switch a {
		case actionDequeue:
			v, ok := mbox.popAny()
			if !ok {
				return Continue, false
			}
			ctx := &actorContext[M]{self: pid, message: v.(M), hasMsg: true, ctx: baseCtx}
			return handler(ctx), true
		default:
			var zero M
			ctx := &actorContext[M]{self: pid, message: zero, hasMsg: false, ctx: baseCtx}
			return handler(ctx), true
		}
	}

	s.mode = modeRunning
	s.maxMessagesPerCycle = min(props.MailboxCapacity, props.MaxMessagesPerCycle)

	for {
		if _, ok := e.runQueue.Push(id); ok {
			break
		}
		runtime.Gosched()
	}

	return pid, true
}

// Send delivers msg to the actor referenced by pid. It returns
// ErrActorIsDead when the slot's generation has moved past pid's
// snapshot, or a *SendFailError[M] (wrapping msg) when the send could not
// complete for a transient reason: the release lock was contended, or the
// mailbox was full (spec section 4.3's "Send").
func Send[M any](pid *Pid[M], msg M) error {
	s := pid.table[pid.slotID]

	if !spinTryLock(&s.releaseLock) {
		return &SendFailError[M]{Msg: msg}
	}

	if pid.generation != s.generation.Load() {
		spinUnlock(&s.releaseLock)
		return ErrActorIsDead
	}

	rejected, ok := s.mbox.pushAny(msg)
	spinUnlock(&s.releaseLock)

	if !ok {
		typedRejected, _ := rejected.(M)
		return &SendFailError[M]{Msg: typedRejected}
	}

	// Resolution of spec section 9's open question: a Waiting actor whose
	// mailbox was empty on its last visit is not sitting in the run queue
	// (see workerLoop). The message that wakes it is responsible for
	// putting its slot id back on the run queue. The idle flag's
	// true->false CAS hands this responsibility to exactly one of
	// {this Send, the worker that will next observe the slot} — never
	// both, preserving the "slot id in at most one place" invariant.
	if s.idle.CompareAndSwap(true, false) {
		for {
			if _, pushed := pid.runQueue.Push(pid.slotID); pushed {
				break
			}
			runtime.Gosched()
		}
	}

	return nil
}

// Shutdown stops accepting new run-queue work and joins every worker
// goroutine. It is idempotent.
func (e *Engine) Shutdown() {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateStopped)) {
		return
	}
	if err := e.group.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "actor: worker exited with error: %v\n", err)
	}
}

func (e *Engine) workerLoop() {
	for engineState(e.state.Load()) == stateRunning {
		id, ok := e.runQueue.Pop()
		if !ok {
			runtime.Gosched()
			continue
		}

		s := e.slots[id]
		repush := true
		terminated := false
		idleWaiting := false

		for i := 0; i < s.maxMessagesPerCycle; i++ {
			var cont Continuation
			if s.mode == modeRunning {
				cont, _ = s.dispatch(actionOther)
			} else {
				var had bool
				cont, had = s.dispatch(actionDequeue)
				if !had {
					idleWaiting = true
					break
				}
			}

			switch cont {
			case Stop:
				s.reset()
				terminated = true
				repush = false
			case WaitMessage:
				s.mode = modeWaiting
			case Continue:
				s.mode = modeRunning
			}

			if terminated {
				break
			}
		}

		switch {
		case terminated:
			e.processCount.Add(-1)
			for {
				if _, ok := e.pool.Push(id); ok {
					break
				}
				runtime.Gosched()
			}
		case idleWaiting:
			// Close the race spec section 9 leaves open: a Send can land
			// its message in the window between this worker observing an
			// empty mailbox and this store making the slot visible as
			// idle, in which case Send's own CAS (engine.go's Send) finds
			// idle still false and assumes a worker is already going to
			// handle rescheduling. Recheck the mailbox after publishing
			// idle=true; if something is there now, this worker is the
			// one responsible for repushing, unless a concurrent Send
			// already won that CAS first.
			s.idle.Store(true)
			if s.mbox.nonEmpty() && s.idle.CompareAndSwap(true, false) {
				for {
					if _, ok := e.runQueue.Push(id); ok {
						break
					}
					runtime.Gosched()
				}
			}
		case repush:
			for {
				if _, ok := e.runQueue.Push(id); ok {
					break
				}
				runtime.Gosched()
			}
		}
	}
}
