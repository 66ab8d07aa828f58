package main

import (
	"context"

	"github.com/lguibr/actorio/actor"
)

// counterMsg is the sole message type the connection-counter actor
// understands. A zero-value delta combined with a non-nil query channel
// is a read; a non-zero delta with a nil query channel is an increment
// or decrement. The two are never combined in one message.
type counterMsg struct {
	delta int64
	query chan<- int64
}

// spawnConnectionCounter spawns a tiny actor whose entire state is one
// int64, incremented from the reactor goroutine every time a connection
// is accepted and decremented every time one closes. It exists purely to
// demonstrate spec section 2's data-flow paragraph: the reactor and the
// actor engine never share memory directly, only Pids and messages.
func spawnConnectionCounter(engine *actor.Engine) (*actor.Pid[counterMsg], bool) {
	var count int64
	return actor.Spawn(engine, context.Background(), actor.Props[counterMsg]{
		MailboxCapacity:     256,
		MaxMessagesPerCycle: 32,
		Handler: func(ctx actor.Context[counterMsg]) actor.Continuation {
			msg, ok := ctx.Message()
			if !ok {
				return actor.WaitMessage
			}
			if msg.query != nil {
				select {
				case msg.query <- count:
				default:
				}
				return actor.WaitMessage
			}
			count += msg.delta
			return actor.WaitMessage
		},
	})
}
