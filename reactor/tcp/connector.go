package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/sony/gobreaker"
	"golang.org/x/sys/unix"

	"github.com/lguibr/actorio/reactor"
)

// candidate is one resolved address to attempt a connect against — the
// Go substitute for a single ffi::addrinfo record (spec section 3's
// "Address record iterator"). Go's resolver has no raw getaddrinfo()
// list, so candidatesFor builds these from the resolved IPs.
type candidate struct {
	family   int
	sockType int
	proto    int
	sockaddr unix.Sockaddr
}

func candidatesFor(ips []net.IPAddr, port int) []candidate {
	out := make([]candidate, 0, len(ips))
	for _, ip := range ips {
		if ip4 := ip.IP.To4(); ip4 != nil {
			var addr [4]byte
			copy(addr[:], ip4)
			out = append(out, candidate{
				family: unix.AF_INET, sockType: unix.SOCK_STREAM,
				sockaddr: &unix.SockaddrInet4{Port: port, Addr: addr},
			})
			continue
		}
		var addr [16]byte
		copy(addr[:], ip.IP.To16())
		out = append(out, candidate{
			family: unix.AF_INET6, sockType: unix.SOCK_STREAM,
			sockaddr: &unix.SockaddrInet6{Port: port, Addr: addr},
		})
	}
	return out
}

// connectState carries the connector's multi-address walk — the Go
// counterpart of the Msg::TryingConnectionToHost/WriteEvent pair in
// tcp::Connector (aio/net.rs). Rather than an actor mailbox driving the
// state machine, the Reactor's one-shot Write callback closes directly
// over the next step, since the whole walk is confined to the reactor
// goroutine anyway.
type connectState struct {
	r        *reactor.Reactor
	notifier Notifier
	addrs    []candidate
	idx      int
	attempt  int
}

// Connect resolves host and walks the resulting address list, attempting
// a non-blocking connect against each candidate in turn until one
// succeeds or the list is exhausted (spec section 4.6). It returns
// immediately; completion (success or ConnectFailed) is reported entirely
// through notifier. The returned error is only non-nil for failures that
// happen before any attempt could even start (bad port, DNS resolution
// failure) — per-address failures are never returned, only notified,
// exactly like the Option-returning Rust connect_to_host.
func Connect(ctx context.Context, r *reactor.Reactor, host, port string, notifier Notifier) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		err = fmt.Errorf("tcp: invalid port %q: %w", port, err)
		notifier.Error(err)
		return err
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		notifier.Error(fmt.Errorf("tcp: resolve %q: %w", host, err))
		notifier.ConnectFailed()
		return err
	}

	st := &connectState{r: r, notifier: notifier, addrs: candidatesFor(ips, portNum)}
	st.tryNext()
	return nil
}

// ConnectWithBreaker wraps Connect in a gobreaker.CircuitBreaker so a
// host that keeps failing before it can even get an attempt in flight
// trips the breaker instead of being retried forever by the caller. Only
// the errors Connect returns count as failures (an invalid port or a DNS
// failure); a socket that cannot be created is reported through the
// notifier and is not counted by the breaker. The breaker only
// covers the synchronous half of the walk — see DESIGN.md for why the
// asynchronous per-address retries (tracked instead via
// Notifier.Connecting/ConnectFailed) are out of its scope.
func ConnectWithBreaker(ctx context.Context, r *reactor.Reactor, host, port string, notifier Notifier, breaker *gobreaker.CircuitBreaker) error {
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, Connect(ctx, r, host, port, notifier)
	})
	return err
}

func (st *connectState) tryNext() {
	if st.idx >= len(st.addrs) {
		st.notifier.ConnectFailed()
		return
	}
	cand := st.addrs[st.idx]
	st.idx++

	fd, err := unix.Socket(cand.family, cand.sockType|unix.SOCK_NONBLOCK, cand.proto)
	if err != nil {
		st.attempt++
		st.tryNext()
		return
	}

	conn := newConnection(int32(fd), st.r, st.notifier)
	st.notifier.Connecting(conn, st.attempt)

	err = unix.Connect(fd, cand.sockaddr)
	switch err {
	case nil:
		if mErr := manageConnection(st.r, conn); mErr != nil {
			st.attempt++
			st.tryNext()
		}
	case unix.EINPROGRESS:
		attempt := st.attempt
		handle, rErr := st.r.ReserveOneshot(int32(fd), reactor.Write)
		if rErr != nil {
			st.notifier.Error(rErr)
			_ = conn.Close()
			st.attempt++
			st.tryNext()
			return
		}
		handle.SetCallback(func(ev reactor.Event) {
			st.onWriteReady(conn, ev, attempt)
		})
	default:
		// Per-attempt socket close discipline (aio/net.rs
		// TryingConnectionToHost/WriteEvent): every non-success path
		// closes its own fd before moving to the next address. Errors
		// from close() are deliberately ignored — if close failed we
		// cannot tell whether the fd was actually released, and retrying
		// risks closing an unrelated fd a later open() reused.
		_ = conn.Close()
		st.attempt++
		st.tryNext()
	}
}

func (st *connectState) onWriteReady(conn *Connection, ev reactor.Event, attempt int) {
	fd, ok := conn.Fd()
	if !ok {
		return
	}

	if ev.Hangup() || ev.Error() {
		_ = conn.Close()
		st.attempt = attempt + 1
		st.tryNext()
		return
	}
	if !ev.Writable() {
		return
	}

	errno, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	switch {
	case err != nil:
		_ = conn.Close()
		st.attempt = attempt + 1
		st.tryNext()
	case errno != 0:
		_ = conn.Close()
		st.attempt = attempt + 1
		st.tryNext()
	default:
		if mErr := manageConnection(st.r, conn); mErr != nil {
			st.attempt = attempt + 1
			st.tryNext()
		}
	}
}
