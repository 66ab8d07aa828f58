package reactor

import "golang.org/x/sys/unix"

// Mode is the edge-triggered readiness set a caller registers a file
// descriptor for. All non-ShutDown modes implicitly carry EPOLLRDHUP so
// a peer half-close surfaces as a readiness event rather than silence
// (spec section 4.4).
type Mode uint32

const (
	// Read fires when the fd has bytes to read or the peer shut down its
	// write half.
	Read Mode = unix.EPOLLIN | unix.EPOLLET | unix.EPOLLRDHUP
	// Write fires when the fd can accept more bytes.
	Write Mode = unix.EPOLLOUT | unix.EPOLLET | unix.EPOLLRDHUP
	// ReadWrite fires on either.
	ReadWrite Mode = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET | unix.EPOLLRDHUP
	// ShutDown only watches for the peer half-close, without read/write
	// readiness.
	ShutDown Mode = unix.EPOLLRDHUP
)

const (
	statusError  = uint32(unix.EPOLLERR)
	statusHangup = uint32(unix.EPOLLHUP)
	oneshotBit   = uint32(unix.EPOLLONESHOT)
)

// Action is what a persistent callback returns to tell Iterate whether
// to keep the registration or drop it (spec section 4.4).
type Action int

const (
	// Continue keeps the callback registered for future events.
	Continue Action = iota
	// Stop removes the callback from the slab; the caller must not rely
	// on further events for this fd. The fd stays in the epoll set until
	// it is closed, so Registering a still-open fd again fails in the
	// kernel.
	Stop
)

// Event is the readiness payload handed to a callback. Fd is the file
// descriptor that became ready (recovered from the slab entry, not from
// the kernel payload directly — see Reactor's slab design note).
type Event struct {
	Fd     int32
	Events uint32
}

// Readable reports whether the fd has data to read.
func (e Event) Readable() bool { return e.Events&uint32(unix.EPOLLIN) != 0 }

// Writable reports whether the fd can accept a write.
func (e Event) Writable() bool { return e.Events&uint32(unix.EPOLLOUT) != 0 }

// Hangup reports the peer-hangup bit (EPOLLHUP).
func (e Event) Hangup() bool { return e.Events&statusHangup != 0 }

// Error reports the socket-error bit (EPOLLERR).
func (e Event) Error() bool { return e.Events&statusError != 0 }

// Status is the outcome of one Iterate call.
type Status int

const (
	// StatusOK means Iterate dispatched zero or more ready events and
	// the loop should call Iterate again.
	StatusOK Status = iota
	// StatusInterrupted means the kernel wait was interrupted by a
	// signal; the loop should retry immediately.
	StatusInterrupted
	// StatusError means the kernel wait failed for a reason other than
	// interruption; Run returns the error and stops.
	StatusError
)
