package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingMsg struct{ n int }
type pongMsg struct{ n int }

func TestEngine_PingPong_ThousandExchanges(t *testing.T) {
	const exchanges = 1000

	e := NewEngine(4, 2)
	defer e.Shutdown()

	var pongsReceived atomic.Int64
	done := make(chan struct{})

	var bPid *Pid[pongMsg]
	aPid, ok := Spawn(e, context.Background(), Props[pingMsg]{
		MailboxCapacity:     16,
		MaxMessagesPerCycle: 4,
		Handler: func(ctx Context[pingMsg]) Continuation {
			msg, ok := ctx.Message()
			if !ok {
				return WaitMessage
			}
			_ = Send(bPid, pongMsg{n: msg.n})
			return WaitMessage
		},
	})
	require.True(t, ok)
	require.NotNil(t, aPid)

	bPid, ok = Spawn(e, context.Background(), Props[pongMsg]{
		MailboxCapacity:     16,
		MaxMessagesPerCycle: 4,
		Handler: func(ctx Context[pongMsg]) Continuation {
			msg, ok := ctx.Message()
			if !ok {
				return WaitMessage
			}
			n := pongsReceived.Add(1)
			if n == exchanges {
				close(done)
				return Stop
			}
			_ = Send(aPid, pingMsg{n: msg.n + 1})
			return WaitMessage
		},
	})
	require.True(t, ok)
	require.NotNil(t, bPid)

	require.NoError(t, Send(aPid, pingMsg{n: 0}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("exchanges did not complete in time, got %d", pongsReceived.Load())
	}

	assert.Equal(t, int64(exchanges), pongsReceived.Load())
}

func TestEngine_SendToDeadActor(t *testing.T) {
	e := NewEngine(2, 1)
	defer e.Shutdown()

	stopped := make(chan struct{})
	pid, ok := Spawn(e, context.Background(), Props[int]{
		MailboxCapacity:     4,
		MaxMessagesPerCycle: 2,
		Handler: func(ctx Context[int]) Continuation {
			if _, ok := ctx.Message(); ok {
				close(stopped)
				return Stop
			}
			return WaitMessage
		},
	})
	require.True(t, ok)

	require.NoError(t, Send(pid, 1))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("actor never stopped")
	}

	require.Eventually(t, func() bool {
		return Send(pid, 2) == ErrActorIsDead
	}, time.Second, time.Millisecond)
}

func TestEngine_CapacityExhaustion(t *testing.T) {
	e := NewEngine(4, 1)
	defer e.Shutdown()

	stopSignals := make([]chan struct{}, 0, 4)
	pids := make([]*Pid[struct{}], 0, 4)

	spawnBlocker := func() (*Pid[struct{}], chan struct{}) {
		stop := make(chan struct{})
		pid, ok := Spawn(e, context.Background(), Props[struct{}]{
			MailboxCapacity:     1,
			MaxMessagesPerCycle: 1,
			Handler: func(ctx Context[struct{}]) Continuation {
				select {
				case <-stop:
					return Stop
				default:
				}
				return WaitMessage
			},
		})
		require.True(t, ok)
		return pid, stop
	}

	for i := 0; i < 4; i++ {
		pid, stop := spawnBlocker()
		pids = append(pids, pid)
		stopSignals = append(stopSignals, stop)
	}

	require.Equal(t, int64(4), e.ProcessCount())

	_, ok := Spawn(e, context.Background(), Props[struct{}]{
		MailboxCapacity:     1,
		MaxMessagesPerCycle: 1,
		Handler: func(ctx Context[struct{}]) Continuation { return Stop },
	})
	assert.False(t, ok, "fifth spawn should fail at capacity 4")

	close(stopSignals[0])
	require.NoError(t, Send(pids[0], struct{}{}))

	require.Eventually(t, func() bool {
		return e.ProcessCount() == 3
	}, time.Second, time.Millisecond)

	pid5, ok := Spawn(e, context.Background(), Props[struct{}]{
		MailboxCapacity:     1,
		MaxMessagesPerCycle: 1,
		Handler: func(ctx Context[struct{}]) Continuation { return WaitMessage },
	})
	assert.True(t, ok, "spawn should succeed again once a slot frees up")
	assert.NotNil(t, pid5)

	for i := 1; i < 4; i++ {
		close(stopSignals[i])
		_ = Send(pids[i], struct{}{})
	}
}

func TestEngine_ParentSlotPropagation(t *testing.T) {
	e := NewEngine(4, 2)
	defer e.Shutdown()

	childSpawned := make(chan uint32, 1)

	parentPid, ok := Spawn(e, context.Background(), Props[int]{
		MailboxCapacity:     4,
		MaxMessagesPerCycle: 2,
		Handler: func(ctx Context[int]) Continuation {
			if _, ok := ctx.Message(); !ok {
				return WaitMessage
			}
			childPid, ok := Spawn(e, ctx.Context(), Props[int]{
				MailboxCapacity:     1,
				MaxMessagesPerCycle: 1,
				Handler: func(ctx Context[int]) Continuation { return WaitMessage },
			})
			if ok {
				childSpawned <- childPid.SlotID()
			}
			return Stop
		},
	})
	require.True(t, ok)
	require.NoError(t, Send(parentPid, 1))

	select {
	case childSlot := <-childSpawned:
		assert.NotEqual(t, parentPid.SlotID(), childSlot)
		assert.Equal(t, int32(parentPid.SlotID()), e.slots[childSlot].parent)
	case <-time.After(time.Second):
		t.Fatal("child actor was never spawned")
	}
}

func TestEngine_GenerationNotReusedAcrossRespawn(t *testing.T) {
	e := NewEngine(1, 1)
	defer e.Shutdown()

	pid1, ok := Spawn(e, context.Background(), Props[int]{
		MailboxCapacity:     1,
		MaxMessagesPerCycle: 1,
		Handler: func(ctx Context[int]) Continuation {
			if _, ok := ctx.Message(); ok {
				return Stop
			}
			return WaitMessage
		},
	})
	require.True(t, ok)
	require.NoError(t, Send(pid1, 1))

	require.Eventually(t, func() bool {
		return Send(pid1, 2) == ErrActorIsDead
	}, time.Second, time.Millisecond)

	pid2, ok := Spawn(e, context.Background(), Props[int]{
		MailboxCapacity:     1,
		MaxMessagesPerCycle: 1,
		Handler: func(ctx Context[int]) Continuation { return WaitMessage },
	})
	require.True(t, ok)

	assert.Equal(t, pid1.SlotID(), pid2.SlotID())
	assert.NotEqual(t, pid1.generation, pid2.generation)
	assert.ErrorIs(t, Send(pid1, 3), ErrActorIsDead)
}
