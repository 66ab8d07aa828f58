package actor

import "github.com/lguibr/actorio/actor/queue"

// Props configures a single Spawn call: the handler, the bound on its
// mailbox, and how many messages (or Running-mode invocations) it may
// process per worker visit before yielding the slot back to the run
// queue (spec section 4.3, "SpawnParameters").
type Props[M any] struct {
	Handler             Handler[M]
	MailboxCapacity     int
	MaxMessagesPerCycle int
}

// mailbox is the type-erased capability interface a process slot holds
// so that heterogeneously-typed actors can share one homogeneous slot
// array. This is strategy (ii) from spec section 9's design note
// ("a polymorphic queue object behind a capability interface"), chosen
// over a tagged-variant mailbox because the set of message types spawned
// into an Engine is open-ended and unknown at Engine construction time.
type mailbox interface {
	pushAny(v any) (rejected any, ok bool)
	popAny() (v any, ok bool)
	nonEmpty() bool
}

type typedMailbox[M any] struct {
	q *queue.Queue[M]
}

func newTypedMailbox[M any](capacity int) *typedMailbox[M] {
	return &typedMailbox[M]{q: queue.New[M](capacity)}
}

func (m *typedMailbox[M]) pushAny(v any) (any, bool) {
	msg, _ := v.(M)
	rejected, ok := m.q.Push(msg)
	if ok {
		return nil, true
	}
	return rejected, false
}

func (m *typedMailbox[M]) popAny() (any, bool) {
	v, ok := m.q.Pop()
	if !ok {
		return nil, false
	}
	return v, true
}

func (m *typedMailbox[M]) nonEmpty() bool {
	return m.q.Peek()
}
