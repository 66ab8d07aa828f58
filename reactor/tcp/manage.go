package tcp

import (
	"github.com/lguibr/actorio/reactor"
)

// manageConnection installs the persistent read-write callback for an
// already-established socket and fires Connected. The ordering —
// Connected before the fd is registered — matches manage_connection in
// aio/net.rs exactly: notify.connected() runs first, then the fd joins
// the event loop read-write. Both the synchronous-connect path and the
// async connect-retry completion path call this same function, so a
// connection looks identical to its notifier regardless of how it was
// established.
func manageConnection(r *reactor.Reactor, conn *Connection) error {
	conn.notifier.Connected(conn)

	fd, ok := conn.Fd()
	if !ok {
		return nil
	}
	if err := r.Register(fd, reactor.ReadWrite, conn.handleEvent); err != nil {
		conn.notifier.Error(err)
		return err
	}
	return nil
}
