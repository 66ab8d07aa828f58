package tcp

import "io"

// Notifier receives lifecycle callbacks for a single connection, covering
// both accepted and dialed connections (spec section 4.5's notifier
// contract). Every method is optional in spirit; embed NopNotifier to get
// no-op defaults and override only what matters.
type Notifier interface {
	// Accepted fires once, right after a listener accepts a new
	// connection, before it is registered with the reactor.
	Accepted(c *Connection)
	// Connecting fires once per dial attempt, before the connect
	// syscall, with the zero-based attempt count.
	Connecting(c *Connection, attempt int)
	// Connected fires once after the socket is established, whether
	// synchronously or via the async connect-retry state machine. This
	// is the only hook with a non-nop default in the original contract:
	// it always fires on a successful connect. NopNotifier still gives it
	// a no-op default like every other hook.
	Connected(c *Connection)
	// ConnectFailed fires when the address list is exhausted with no
	// successful connection.
	ConnectFailed()
	// AuthFailed fires for notifiers layering an auth handshake on top
	// of the raw byte stream; the core TCP subsystem never calls this
	// itself (no handshake is implemented at this layer) but the hook is
	// kept so notifiers composing one can participate in the same
	// dispatch path spec 4.5 defines.
	AuthFailed(c *Connection)
	// Error fires for any I/O error not otherwise covered (read/write
	// failures, registration failures).
	Error(err error)
	// Sent fires after each partial or complete write makes progress.
	Sent()
	// WaitForBytes lets a notifier request at least quantity bytes
	// before its next Received call; returning 0 (the default) means no
	// preference. The core does not buffer to satisfy this itself — see
	// DESIGN.md for why this is a caller-observed hint, not an enforced
	// contract.
	WaitForBytes(c *Connection, quantity int) int
	// Received fires with each chunk read from the socket.
	Received(c *Connection, data []byte)
	// Closed fires when the connection is torn down by a peer hangup or
	// EOF, a read error, or Connection.Dispose. A failed pending-write
	// drain fires Error and tears the connection down without Closed.
	Closed(c *Connection)
	// Throttled fires when a write could not be fully drained and had
	// to be queued (spec 4.5/4.6's backpressure scenario).
	Throttled(c *Connection)
	// Unthrottled fires once the pending-write queue drains back to
	// empty.
	Unthrottled(c *Connection)
}

// NopNotifier supplies no-op defaults for every Notifier method so
// callers only implement the hooks they care about.
type NopNotifier struct{}

func (NopNotifier) Accepted(*Connection)          {}
func (NopNotifier) Connecting(*Connection, int)   {}
func (NopNotifier) Connected(*Connection)         {}
func (NopNotifier) ConnectFailed()                {}
func (NopNotifier) AuthFailed(*Connection)        {}
func (NopNotifier) Error(error)                   {}
func (NopNotifier) Sent()                         {}
func (NopNotifier) WaitForBytes(*Connection, int) int { return 0 }
func (NopNotifier) Received(*Connection, []byte)  {}
func (NopNotifier) Closed(*Connection)             {}
func (NopNotifier) Throttled(*Connection)          {}
func (NopNotifier) Unthrottled(*Connection)        {}

var _ Notifier = NopNotifier{}
var _ io.Closer = (*Connection)(nil)

// ListenNotifier receives lifecycle callbacks for a Listener and mints a
// fresh Notifier for every accepted connection (spec section 4.7).
type ListenNotifier interface {
	// Listening fires once the listening socket is bound and
	// registered.
	Listening(fd int32)
	// NotListening fires if binding or registering failed.
	NotListening()
	// Closed fires when the listening socket reports a hangup or error.
	// Listener.Close does not call it.
	Closed()
	// Connected mints the per-connection Notifier used for one accepted
	// socket. Unlike the other hooks this has no sensible default — a
	// listener with no connection notifier could not do anything with
	// what it accepts — so it is not part of NopListenNotifier.
	Connected() Notifier
	// Error fires for any listener-level I/O error (accept failures
	// other than EAGAIN).
	Error(err error)
}

// NopListenNotifier supplies defaults for every ListenNotifier method
// except Connected, which callers must still implement.
type NopListenNotifier struct{}

func (NopListenNotifier) Listening(int32) {}
func (NopListenNotifier) NotListening()   {}
func (NopListenNotifier) Closed()         {}
func (NopListenNotifier) Error(error)     {}
