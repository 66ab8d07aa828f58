// Command pingpong runs the core scheduler's canonical two-actor
// exchange (spec section 8, scenario (a)): actor A echoes Ping back as
// Pong, actor B sends the first Ping and counts Pongs until it has seen
// cfg.Exchanges of them, then reports elapsed time and stops.
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/lguibr/actorio/actor"
)

type ping struct{ n int }
type pong struct{ n int }

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pingpong:", err)
		os.Exit(1)
	}

	engine := actor.NewEngine(cfg.ProcessCapacity, cfg.WorkerCount)
	defer engine.Shutdown()

	var pongs atomic.Int64
	done := make(chan struct{})
	start := time.Now()

	var bPid *actor.Pid[pong]
	aPid, ok := actor.Spawn(engine, context.Background(), actor.Props[ping]{
		MailboxCapacity:     cfg.MailboxCapacity,
		MaxMessagesPerCycle: cfg.MaxMessagesPerCycle,
		Handler: func(ctx actor.Context[ping]) actor.Continuation {
			msg, ok := ctx.Message()
			if !ok {
				return actor.WaitMessage
			}
			_ = actor.Send(bPid, pong{n: msg.n})
			return actor.WaitMessage
		},
	})
	if !ok {
		fmt.Fprintln(os.Stderr, "pingpong: failed to spawn actor A")
		os.Exit(1)
	}

	bPid, ok = actor.Spawn(engine, context.Background(), actor.Props[pong]{
		MailboxCapacity:     cfg.MailboxCapacity,
		MaxMessagesPerCycle: cfg.MaxMessagesPerCycle,
		Handler: func(ctx actor.Context[pong]) actor.Continuation {
			msg, ok := ctx.Message()
			if !ok {
				return actor.WaitMessage
			}
			n := pongs.Add(1)
			if n >= int64(cfg.Exchanges) {
				close(done)
				return actor.Stop
			}
			_ = actor.Send(aPid, ping{n: msg.n + 1})
			return actor.WaitMessage
		},
	})
	if !ok {
		fmt.Fprintln(os.Stderr, "pingpong: failed to spawn actor B")
		os.Exit(1)
	}

	if err := actor.Send(aPid, ping{n: 0}); err != nil {
		fmt.Fprintln(os.Stderr, "pingpong: initial send failed:", err)
		os.Exit(1)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		fmt.Fprintf(os.Stderr, "pingpong: timed out after %d/%d exchanges\n", pongs.Load(), cfg.Exchanges)
		os.Exit(1)
	}

	fmt.Printf("pingpong: %d exchanges in %s\n", pongs.Load(), time.Since(start))
}
