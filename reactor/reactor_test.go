package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func pipeFds(t *testing.T) (r, w int) {
	t.Helper()
	fds, err := unix.Pipe2(unix.O_NONBLOCK)
	require.NoError(t, err)
	return fds[0], fds[1]
}

func TestReactor_RegisterFiresOnReadiness(t *testing.T) {
	reactor, err := New()
	require.NoError(t, err)
	defer reactor.Close()

	rfd, wfd := pipeFds(t)
	defer unix.Close(wfd)

	fired := make(chan Event, 1)
	require.NoError(t, reactor.Register(int32(rfd), Read, func(ev Event) Action {
		fired <- ev
		return Continue
	}))
	defer reactor.Unregister(int32(rfd))
	defer unix.Close(rfd)

	_, err = unix.Write(wfd, []byte("hi"))
	require.NoError(t, err)

	buf := make([]unix.EpollEvent, 8)
	status := reactor.Iterate(buf)
	require.Equal(t, StatusOK, status)

	select {
	case ev := <-fired:
		assert.True(t, ev.Readable())
		assert.Equal(t, int32(rfd), ev.Fd)
	default:
		t.Fatal("callback was not invoked")
	}
}

func TestReactor_RegisterStopRemovesCallback(t *testing.T) {
	reactor, err := New()
	require.NoError(t, err)
	defer reactor.Close()

	rfd, wfd := pipeFds(t)
	defer unix.Close(wfd)
	defer unix.Close(rfd)

	calls := 0
	require.NoError(t, reactor.Register(int32(rfd), Read, func(ev Event) Action {
		calls++
		return Stop
	}))

	_, err = unix.Write(wfd, []byte("a"))
	require.NoError(t, err)

	buf := make([]unix.EpollEvent, 8)
	reactor.Iterate(buf)
	assert.Equal(t, 1, calls)

	_, _, ok := reactor.registeredState(int32(rfd))
	assert.False(t, ok, "Stop must remove the slab entry")
}

func TestReactor_RegisterOneshotFiresOnce(t *testing.T) {
	reactor, err := New()
	require.NoError(t, err)
	defer reactor.Close()

	rfd, wfd := pipeFds(t)
	defer unix.Close(wfd)
	defer unix.Close(rfd)

	calls := 0
	require.NoError(t, reactor.RegisterOneshot(int32(rfd), Read, func(ev Event) {
		calls++
	}))

	_, err = unix.Write(wfd, []byte("a"))
	require.NoError(t, err)

	buf := make([]unix.EpollEvent, 8)
	reactor.Iterate(buf)
	assert.Equal(t, 1, calls)

	_, _, ok := reactor.registeredState(int32(rfd))
	assert.False(t, ok, "one-shot entries are always removed after firing")
}

func TestReactor_ReserveThenSetCallback(t *testing.T) {
	reactor, err := New()
	require.NoError(t, err)
	defer reactor.Close()

	rfd, wfd := pipeFds(t)
	defer unix.Close(wfd)
	defer unix.Close(rfd)

	handle, err := reactor.Reserve(int32(rfd), Read)
	require.NoError(t, err)

	fired := false
	handle.SetCallback(func(ev Event) Action {
		fired = true
		return Stop
	})

	_, err = unix.Write(wfd, []byte("a"))
	require.NoError(t, err)

	buf := make([]unix.EpollEvent, 8)
	reactor.Iterate(buf)
	assert.True(t, fired)
}

func TestReactor_UnregisterRoundTrip(t *testing.T) {
	reactor, err := New()
	require.NoError(t, err)
	defer reactor.Close()

	rfd, wfd := pipeFds(t)
	defer unix.Close(wfd)
	defer unix.Close(rfd)

	require.NoError(t, reactor.Register(int32(rfd), Read, func(Event) Action { return Continue }))
	require.NoError(t, reactor.Unregister(int32(rfd)))

	_, _, ok := reactor.registeredState(int32(rfd))
	assert.False(t, ok)

	// Re-registering the same fd after a clean unregister must succeed.
	require.NoError(t, reactor.Register(int32(rfd), Read, func(Event) Action { return Continue }))
	assert.Error(t, reactor.Register(int32(rfd), Read, func(Event) Action { return Continue }),
		"registering an already-registered fd must fail")
}

// registeredState is a small test-only accessor so the tests above can
// assert on slab bookkeeping without exporting it from the package.
func (r *Reactor) registeredState(fd int32) (uint64, *entry, bool) {
	key, ok := r.registered[fd]
	if !ok {
		return 0, nil, false
	}
	e, ok := r.slab[key]
	return key, e, ok
}
