// Package reactor implements the single-threaded, edge-triggered readiness
// loop that the TCP subsystem (package reactor/tcp) runs on. It wraps a
// Linux epoll instance and dispatches ready events to per-fd callbacks
// kept in a slab keyed by a compact integer embedded in the kernel event
// payload, rather than a raw pointer cast — spec section 4.4's callback
// table, resolving the REDESIGN FLAG against the prototype's
// epoll_data_t.u64-as-pointer cast (see DESIGN.md).
package reactor

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

type callback func(Event) Action
type onceCallback func(Event)

type entry struct {
	fd      int32
	cb      callback
	onceCb  onceCallback
	oneshot bool
}

// Reactor is not safe for concurrent use: it is meant to be driven by a
// single goroutine, exactly as spec section 5 describes the reactor
// domain ("cooperative... callbacks must not block").
type Reactor struct {
	epfd       int
	slab       map[uint64]*entry
	registered map[int32]uint64
	nextKey    uint64
	lastErr    error
}

// New creates a Reactor backed by a fresh epoll instance.
func New() (*Reactor, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:       fd,
		slab:       make(map[uint64]*entry),
		registered: make(map[int32]uint64),
	}, nil
}

// Close releases the underlying epoll fd. It does not unregister or
// close any fds the caller registered; callers own those.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// Register installs a persistent callback for fd under modeset. The
// callback is invoked on every matching readiness event until it returns
// Stop or the fd is Unregistered. Registering an fd that is already
// registered is an error — the spec requires an fd not be registered
// twice concurrently (section 4.4).
func (r *Reactor) Register(fd int32, mode Mode, cb func(Event) Action) error {
	return r.add(fd, uint32(mode), &entry{fd: fd, cb: cb})
}

// RegisterOneshot installs a callback that fires at most once: the
// kernel one-shot bit is set so the fd goes quiescent after the first
// event, and the slab entry is always removed after dispatch regardless
// of the callback's own logic (spec section 4.4: "for one-shot
// callbacks, always remove"). The fd is also removed from the epoll set
// before the callback runs, so the callback may Register it again.
func (r *Reactor) RegisterOneshot(fd int32, mode Mode, cb func(Event)) error {
	return r.add(fd, uint32(mode)|oneshotBit, &entry{fd: fd, onceCb: cb, oneshot: true})
}

// Handle lets a caller install a persistent callback after the fd has
// already been registered — used when the callback itself needs to
// close over the Handle (spec section 4.4's "reserve").
type Handle struct {
	r   *Reactor
	key uint64
}

// SetCallback installs the persistent callback for a reserved slot.
func (h *Handle) SetCallback(cb func(Event) Action) {
	if e, ok := h.r.slab[h.key]; ok {
		e.cb = cb
	}
}

// Reserve allocates and registers a callback slot without installing a
// callback, returning a Handle the caller installs one on later.
func (r *Reactor) Reserve(fd int32, mode Mode) (*Handle, error) {
	e := &entry{fd: fd, cb: func(Event) Action { return Continue }}
	key, err := r.register(fd, uint32(mode), e)
	if err != nil {
		return nil, err
	}
	return &Handle{r: r, key: key}, nil
}

// OnceHandle is the one-shot counterpart of Handle, used by the TCP
// connector to defer the Write-readiness callback until after it knows
// which address it is retrying (spec section 4.6).
type OnceHandle struct {
	r   *Reactor
	key uint64
}

// SetCallback installs the one-shot callback for a reserved slot.
func (h *OnceHandle) SetCallback(cb func(Event)) {
	if e, ok := h.r.slab[h.key]; ok {
		e.onceCb = cb
	}
}

// ReserveOneshot is the one-shot counterpart of Reserve.
func (r *Reactor) ReserveOneshot(fd int32, mode Mode) (*OnceHandle, error) {
	e := &entry{fd: fd, onceCb: func(Event) {}, oneshot: true}
	key, err := r.register(fd, uint32(mode)|oneshotBit, e)
	if err != nil {
		return nil, err
	}
	return &OnceHandle{r: r, key: key}, nil
}

func (r *Reactor) add(fd int32, events uint32, e *entry) error {
	_, err := r.register(fd, events, e)
	return err
}

func (r *Reactor) register(fd int32, events uint32, e *entry) (uint64, error) {
	if _, exists := r.registered[fd]; exists {
		return 0, fmt.Errorf("reactor: fd %d already registered", fd)
	}
	key := r.nextKey
	r.nextKey++

	ev := unix.EpollEvent{Events: events}
	ev.Fd = int32(uint32(key))
	ev.Pad = int32(uint32(key >> 32))
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return 0, fmt.Errorf("reactor: epoll_ctl add fd %d: %w", fd, err)
	}

	r.slab[key] = e
	r.registered[fd] = key
	return key, nil
}

// Unregister removes fd from the epoll instance and drops its callback.
// Registering then Unregistering the same fd leaves no trace of fd in
// the slab or the registration map (spec section 8's round-trip
// property); the key counter is not rewound.
func (r *Reactor) Unregister(fd int32) error {
	key, ok := r.registered[fd]
	if !ok {
		return fmt.Errorf("reactor: fd %d not registered", fd)
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("reactor: epoll_ctl del fd %d: %w", fd, err)
	}
	delete(r.slab, key)
	delete(r.registered, fd)
	return nil
}

// Iterate blocks on the kernel wait with an infinite timeout, then
// dispatches each ready event to its slab callback (spec section 4.4).
func (r *Reactor) Iterate(buf []unix.EpollEvent) Status {
	n, err := unix.EpollWait(r.epfd, buf, -1)
	if err != nil {
		if err == unix.EINTR {
			return StatusInterrupted
		}
		r.lastErr = err
		return StatusError
	}

	for i := 0; i < n; i++ {
		raw := buf[i]
		key := uint64(uint32(raw.Fd)) | uint64(uint32(raw.Pad))<<32
		e, ok := r.slab[key]
		if !ok {
			continue
		}
		event := Event{Fd: e.fd, Events: raw.Events}

		if e.oneshot {
			delete(r.slab, key)
			delete(r.registered, e.fd)
			// The one-shot bit only disarms the fd; drop it from the epoll
			// set too so the callback can register it again.
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(e.fd), nil)
			e.onceCb(event)
			continue
		}

		if e.cb(event) == Stop {
			delete(r.slab, key)
			delete(r.registered, e.fd)
		}
	}
	return StatusOK
}

// Run loops Iterate until a non-interrupted error occurs, resuming on
// signal interruption (spec section 4.4's "run"). lastErr carries the
// io.Error a StatusError Iterate call produced, mirroring the Rust
// EpollResult enum's own Error(io::Error) variant without forcing every
// Iterate caller to thread an error value through the hot dispatch path.
func (r *Reactor) Run() error {
	buf := make([]unix.EpollEvent, maxEvents)
	for {
		switch r.Iterate(buf) {
		case StatusInterrupted:
			continue
		case StatusError:
			return r.lastErr
		default:
			runtime.Gosched()
		}
	}
}
