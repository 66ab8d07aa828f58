package tcp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/lguibr/actorio/reactor"
)

type fallbackNotifier struct {
	NopNotifier
	connecting []int
	connected  chan struct{}
	failed     chan struct{}
}

func newFallbackNotifier() *fallbackNotifier {
	return &fallbackNotifier{connected: make(chan struct{}, 1), failed: make(chan struct{}, 1)}
}

func (n *fallbackNotifier) Connecting(c *Connection, attempt int) { n.connecting = append(n.connecting, attempt) }
func (n *fallbackNotifier) Connected(c *Connection)               { n.connected <- struct{}{} }
func (n *fallbackNotifier) ConnectFailed() {
	select {
	case n.failed <- struct{}{}:
	default:
	}
}

func loopbackCandidate(port int) candidate {
	return candidate{
		family:   unix.AF_INET,
		sockType: unix.SOCK_STREAM,
		sockaddr: &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}},
	}
}

func findClosedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// TestConnector_FallsBackToSecondAddress exercises spec section 8 scenario
// (e): the first candidate refuses the connection (synchronously, or via
// the async SO_ERROR path depending on kernel timing — both are handled
// by the same tryNext/onWriteReady fallback), the second succeeds.
func TestConnector_FallsBackToSecondAddress(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	l, err := Listen(r, "127.0.0.1:0", echoListenNotifier{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	goodAddr, err := l.Addr()
	require.NoError(t, err)
	badPort := findClosedPort(t)

	go r.Run()

	notifier := newFallbackNotifier()
	st := &connectState{
		r:        r,
		notifier: notifier,
		addrs: []candidate{
			loopbackCandidate(badPort),
			loopbackCandidate(goodAddr.Port),
		},
	}
	st.tryNext()

	select {
	case <-notifier.connected:
	case <-notifier.failed:
		t.Fatal("connector reported failure instead of falling back to the second address")
	case <-time.After(3 * time.Second):
		t.Fatal("connector never completed")
	}

	require.GreaterOrEqual(t, len(notifier.connecting), 2)
	assert.Equal(t, 0, notifier.connecting[0])
	assert.Equal(t, 1, notifier.connecting[1])
}

// TestConnector_BreakerWrapsSynchronousFailures exercises
// ConnectWithBreaker's scope (DESIGN.md section 1, "gobreaker scope"):
// it only governs the synchronous half of a connect — here, DNS
// resolution of a hostname that can never resolve ("resolve.invalid",
// reserved by RFC 2606) — so repeated calls trip the breaker, and once
// open, Execute short-circuits before Connect's own resolver call runs.
func TestConnector_BreakerWrapsSynchronousFailures(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	go r.Run()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "connect-test",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	notifier := newFallbackNotifier()
	for i := 0; i < 2; i++ {
		err := ConnectWithBreaker(context.Background(), r, "resolve.invalid", "80", notifier, breaker)
		assert.Error(t, err)
	}

	err = ConnectWithBreaker(context.Background(), r, "resolve.invalid", "80", notifier, breaker)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState, "breaker should be open after consecutive resolution failures")
}

// TestConnector_BreakerPassesThroughSuccessfulConnects checks the happy
// path is unaffected by wrapping Connect in a breaker: a real listener
// resolves and connects normally through ConnectWithBreaker.
func TestConnector_BreakerPassesThroughSuccessfulConnects(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	l, err := Listen(r, "127.0.0.1:0", echoListenNotifier{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	addr, err := l.Addr()
	require.NoError(t, err)

	go r.Run()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "connect-success-test"})
	notifier := newFallbackNotifier()

	require.NoError(t, ConnectWithBreaker(context.Background(), r, addr.IP.String(), strconv.Itoa(addr.Port), notifier, breaker))

	select {
	case <-notifier.connected:
	case <-time.After(3 * time.Second):
		t.Fatal("breaker-wrapped connect never reported Connected")
	}
}

func TestConnector_ExhaustionReportsConnectFailed(t *testing.T) {
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	go r.Run()

	badPort1 := findClosedPort(t)
	badPort2 := findClosedPort(t)

	notifier := newFallbackNotifier()
	st := &connectState{
		r:        r,
		notifier: notifier,
		addrs: []candidate{
			loopbackCandidate(badPort1),
			loopbackCandidate(badPort2),
		},
	}
	st.tryNext()

	select {
	case <-notifier.failed:
	case <-notifier.connected:
		t.Fatal("expected ConnectFailed, both addresses should refuse")
	case <-time.After(3 * time.Second):
		t.Fatal("connector never reported exhaustion")
	}
}
