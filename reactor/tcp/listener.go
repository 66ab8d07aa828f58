package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/lguibr/actorio/reactor"
)

const listenBacklog = 128

// Listener is a non-blocking TCP listener registered on a Reactor. On
// each Read-readiness event it accepts until EWOULDBLOCK, minting a
// fresh per-connection Notifier from its ListenNotifier for every
// accepted socket (spec section 4.7).
type Listener struct {
	fd       int32
	reactor  *reactor.Reactor
	notifier ListenNotifier
}

// Listen binds address (host:port, "" host means all interfaces, a ":0"
// port means an ephemeral port), registers Read on r, and returns the
// Listener. Binding failure calls notifier.NotListening before returning
// the error.
func Listen(r *reactor.Reactor, address string, notifier ListenNotifier) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		notifier.NotListening()
		return nil, fmt.Errorf("tcp: resolve %q: %w", address, err)
	}

	family, sa := sockaddrFor(tcpAddr.IP, tcpAddr.Port)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		notifier.NotListening()
		return nil, fmt.Errorf("tcp: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		notifier.NotListening()
		return nil, fmt.Errorf("tcp: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		notifier.NotListening()
		return nil, fmt.Errorf("tcp: bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		notifier.NotListening()
		return nil, fmt.Errorf("tcp: listen: %w", err)
	}

	l := &Listener{fd: int32(fd), reactor: r, notifier: notifier}
	if err := r.Register(l.fd, reactor.Read, l.handleEvent); err != nil {
		unix.Close(fd)
		notifier.NotListening()
		return nil, err
	}
	notifier.Listening(l.fd)
	return l, nil
}

// Addr returns the address the listener is actually bound to, useful to
// recover the ephemeral port the kernel chose for a ":0" bind.
func (l *Listener) Addr() (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(int(l.fd))
	if err != nil {
		return nil, fmt.Errorf("tcp: getsockname: %w", err)
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}, nil
	default:
		return nil, fmt.Errorf("tcp: unsupported sockaddr type %T", sa)
	}
}

// Close unregisters and closes the listening socket.
func (l *Listener) Close() error {
	_ = l.reactor.Unregister(l.fd)
	return unix.Close(int(l.fd))
}

func (l *Listener) handleEvent(ev reactor.Event) reactor.Action {
	if ev.Hangup() || ev.Error() {
		l.notifier.Closed()
		return reactor.Stop
	}
	if !ev.Readable() {
		return reactor.Continue
	}

	for {
		nfd, _, err := unix.Accept4(int(l.fd), unix.SOCK_NONBLOCK)
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				return reactor.Continue
			case unix.EINTR:
				continue
			default:
				l.notifier.Error(fmt.Errorf("tcp: accept: %w", err))
				return reactor.Continue
			}
		}

		connNotifier := l.notifier.Connected()
		conn := newConnection(int32(nfd), l.reactor, connNotifier)
		connNotifier.Accepted(conn)
		if err := manageConnection(l.reactor, conn); err != nil {
			_ = conn.Close()
		}
	}
}

func sockaddrFor(ip net.IP, port int) (int, unix.Sockaddr) {
	if ip == nil {
		return unix.AF_INET, &unix.SockaddrInet4{Port: port}
	}
	if ip4 := ip.To4(); ip4 != nil {
		var addr [4]byte
		copy(addr[:], ip4)
		return unix.AF_INET, &unix.SockaddrInet4{Port: port, Addr: addr}
	}
	var addr [16]byte
	copy(addr[:], ip.To16())
	return unix.AF_INET6, &unix.SockaddrInet6{Port: port, Addr: addr}
}
