package tcp

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/lguibr/actorio/reactor"
)

const readBufferSize = 4096

// pendingWrite is one queued write: the original buffer plus how much of
// it has already made it to the kernel (spec section 3, "pending write
// buffers").
type pendingWrite struct {
	buf   []byte
	index int
}

func (p *pendingWrite) slice() []byte    { return p.buf[p.index:] }
func (p *pendingWrite) advance(n int)    { p.index += n }
func (p *pendingWrite) exhausted() bool  { return p.index >= len(p.buf) }

// Connection backs every connected or accepted stream. It is confined to
// the reactor's single goroutine and is not safe for concurrent use,
// exactly like the Rust prototype's _TcpConnection (spec section 4.5).
type Connection struct {
	fd       int32
	reactor  *reactor.Reactor
	notifier Notifier

	pending  []*pendingWrite
	muted    bool
	disposed bool
}

func newConnection(fd int32, r *reactor.Reactor, n Notifier) *Connection {
	return &Connection{fd: fd, reactor: r, notifier: n}
}

// Fd returns the underlying file descriptor and true, or (0, false) once
// the connection has been closed.
func (c *Connection) Fd() (int32, bool) {
	if c.fd < 0 {
		return 0, false
	}
	return c.fd, true
}

// Muted reports whether reads are currently suppressed.
func (c *Connection) Muted() bool { return c.muted }

// Mute suspends delivery of Received callbacks; the reactor still drains
// Write readiness and still observes Read events but skips the read
// syscall while muted is set (spec section 4.5).
func (c *Connection) Mute() { c.muted = true }

// Unmute resumes read delivery.
func (c *Connection) Unmute() { c.muted = false }

// Disposed reports whether Dispose has been called.
func (c *Connection) Disposed() bool { return c.disposed }

// Dispose marks the connection for teardown at the next reactor visit;
// it does not close synchronously so a caller mid-handler can still
// finish its own bookkeeping before the stream disappears.
func (c *Connection) Dispose() { c.disposed = true }

// Close drops the underlying stream immediately. Safe to call more than
// once.
func (c *Connection) Close() error {
	if c.fd < 0 {
		return nil
	}
	fd := c.fd
	c.fd = -1
	return unix.Close(int(fd))
}

func (c *Connection) unregisterAndClose() {
	if c.fd >= 0 {
		_ = c.reactor.Unregister(c.fd)
	}
	_ = c.Close()
}

// Read performs one non-blocking read into buf. It returns (0, nil) if
// the connection has already been closed, matching the prototype's
// "yields 0 on closed socket" behavior rather than surfacing an error
// for a case the caller cannot act on.
func (c *Connection) Read(buf []byte) (int, error) {
	if c.fd < 0 {
		return 0, nil
	}
	n, err := unix.Read(int(c.fd), buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write attempts to drain buf synchronously via repeated non-blocking
// writes. On EWOULDBLOCK it enqueues whatever remains and returns nil: a
// caller never blocks and never loses data, mirroring the prototype's
// TcpConnection::write (spec section 4.5). If a write is already pending
// from an earlier call, the new buffer is appended to the FIFO instead of
// racing the in-flight drain, preserving per-caller ordering.
func (c *Connection) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(c.pending) > 0 {
		c.pending = append(c.pending, &pendingWrite{buf: data})
		c.notifier.Throttled(c)
		return nil
	}

	index := 0
	for index < len(data) {
		if c.fd < 0 {
			return nil
		}
		n, err := unix.Write(int(c.fd), data[index:])
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				c.pending = append(c.pending, &pendingWrite{buf: data, index: index})
				c.notifier.Throttled(c)
				return nil
			case unix.EINTR:
				continue
			default:
				return fmt.Errorf("tcp: write: %w", err)
			}
		}
		index += n
		c.notifier.Sent()
	}
	return nil
}

// drainPending is invoked on every Write-readiness event. It writes the
// head buffer's remaining slice, advances its consumed index, and pops it
// once exhausted; WouldBlock and EINTR leave the head buffer in place for
// the next readiness event (spec section 4.5, "pending writes").
func (c *Connection) drainPending() {
	if len(c.pending) == 0 {
		return
	}
	for len(c.pending) > 0 {
		if c.fd < 0 {
			return
		}
		head := c.pending[0]
		n, err := unix.Write(int(c.fd), head.slice())
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK:
				return
			case unix.EINTR:
				continue
			default:
				c.notifier.Error(fmt.Errorf("tcp: drain pending write: %w", err))
				c.unregisterAndClose()
				return
			}
		}
		head.advance(n)
		c.notifier.Sent()
		if head.exhausted() {
			c.pending = c.pending[1:]
		}
	}
	c.notifier.Unthrottled(c)
}

// handleEvent is the reactor callback installed for a connected or
// accepted fd. It resolves spec section 9's open question about
// simultaneous Read + Hangup/Error in one event by draining the Read
// side fully before acting on Hangup/Error, so buffered bytes are not
// discarded (the prototype unregisters first and may lose them).
func (c *Connection) handleEvent(ev reactor.Event) reactor.Action {
	if ev.Readable() && !c.muted {
		if stop := c.drainReads(); stop {
			return reactor.Stop
		}
	}

	if ev.Writable() {
		c.drainPending()
	}

	if ev.Hangup() || ev.Error() {
		c.notifier.Closed(c)
		c.unregisterAndClose()
		return reactor.Stop
	}

	if c.disposed {
		c.notifier.Closed(c)
		c.unregisterAndClose()
		return reactor.Stop
	}

	return reactor.Continue
}

// drainReads reads until EWOULDBLOCK (edge-triggered readiness demands a
// full drain) and reports true when the connection was torn down as a
// result (peer EOF or a non-transient read error), so handleEvent can
// stop dispatching further checks for this event.
func (c *Connection) drainReads() bool {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.Read(buf)
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EWOULDBLOCK, unix.EINTR:
				return false
			default:
				c.notifier.Error(fmt.Errorf("tcp: read: %w", err))
				c.notifier.Closed(c)
				c.unregisterAndClose()
				return true
			}
		}
		if n == 0 {
			c.notifier.Closed(c)
			c.unregisterAndClose()
			return true
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		c.notifier.Received(c, chunk)
	}
}
