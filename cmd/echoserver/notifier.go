package main

import (
	"fmt"
	"os"

	"github.com/lguibr/actorio/actor"
	"github.com/lguibr/actorio/reactor/tcp"
)

// echoNotifier echoes every chunk it receives straight back to the peer
// (spec.md scenario (d)) and reports the connection's lifecycle to the
// counter actor so /stats can show a live count without the reactor
// goroutine ever touching the actor engine's memory directly.
type echoNotifier struct {
	tcp.NopNotifier
	counter *actor.Pid[counterMsg]
}

func (n echoNotifier) Accepted(*tcp.Connection) {
	_ = actor.Send(n.counter, counterMsg{delta: 1})
}

func (n echoNotifier) Received(c *tcp.Connection, data []byte) {
	if len(data) == 0 {
		return
	}
	if err := c.Write(data); err != nil {
		fmt.Fprintln(os.Stderr, "echoserver: write:", err)
	}
}

func (n echoNotifier) Closed(*tcp.Connection) {
	_ = actor.Send(n.counter, counterMsg{delta: -1})
}

func (n echoNotifier) Error(err error) {
	fmt.Fprintln(os.Stderr, "echoserver: connection error:", err)
}

// echoListenNotifier mints a fresh echoNotifier for every accepted
// connection, whose Accepted hook bumps the counter actor (spec section
// 4.7's "Connected() Notifier" contract).
type echoListenNotifier struct {
	tcp.NopListenNotifier
	counter *actor.Pid[counterMsg]
}

func (l echoListenNotifier) Connected() tcp.Notifier {
	return echoNotifier{counter: l.counter}
}

func (l echoListenNotifier) Error(err error) {
	fmt.Fprintln(os.Stderr, "echoserver: listener error:", err)
}

func (l echoListenNotifier) NotListening() {
	fmt.Fprintln(os.Stderr, "echoserver: failed to bind listener")
}

var _ tcp.Notifier = echoNotifier{}
var _ tcp.ListenNotifier = echoListenNotifier{}
