// Command echoserver runs the TCP subsystem's canonical demo (spec.md
// scenario (d)): a reactor-driven, non-blocking echo listener, fronted by
// a chi /stats endpoint that reports live connection count alongside the
// actor engine's process count, to show the reactor and actor subsystems
// composing through Pids rather than shared memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lguibr/actorio/actor"
	"github.com/lguibr/actorio/reactor"
	"github.com/lguibr/actorio/reactor/tcp"
)

func main() {
	app := &cli.App{
		Name:  "echoserver",
		Usage: "TCP echo server demoing the reactor and actor subsystems together",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "echoserver:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	engine := actor.NewEngine(cfg.Engine.ProcessCapacity, cfg.Engine.WorkerCount)
	defer engine.Shutdown()

	counter, ok := spawnConnectionCounter(engine)
	if !ok {
		return fmt.Errorf("echoserver: failed to spawn connection counter")
	}

	r, err := reactor.New()
	if err != nil {
		return fmt.Errorf("echoserver: %w", err)
	}

	listener, err := tcp.Listen(r, cfg.Reactor.ListenAddr, echoListenNotifier{counter: counter})
	if err != nil {
		return fmt.Errorf("echoserver: %w", err)
	}
	defer listener.Close()

	addr, err := listener.Addr()
	if err != nil {
		return fmt.Errorf("echoserver: %w", err)
	}
	fmt.Printf("echoserver: listening on %s\n", addr)

	httpServer := &http.Server{
		Addr:    cfg.Reactor.StatsAddr,
		Handler: statsRouter(engine, counter),
	}
	fmt.Printf("echoserver: stats on http://%s/stats\n", cfg.Reactor.StatsAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// The reactor goroutine and the stats HTTP server are joined through
	// an errgroup, the same pattern the actor package's own Engine.Shutdown
	// uses to join its worker goroutines (see actor/engine.go) — whichever
	// one exits first (error or a caught signal) triggers an orderly
	// shutdown of the other.
	var shuttingDown atomic.Bool

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := r.Run(); err != nil && !shuttingDown.Load() {
			return fmt.Errorf("reactor stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-stop:
		case <-ctx.Done():
		}
		// r.Close() unblocks the Run goroutine's EpollWait (it returns
		// EBADF), the same way a kernel-level fd close is the only way to
		// interrupt a blocking reactor wait — there is no cooperative
		// cancellation signal the reactor itself exposes (spec section 5,
		// "the reactor... is unblocked only by readiness or by signal").
		shuttingDown.Store(true)
		_ = listener.Close()
		_ = r.Close()
		return httpServer.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "echoserver:", err)
	}
	return nil
}
