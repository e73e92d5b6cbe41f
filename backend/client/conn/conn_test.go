package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adwski/livepost/backend/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayStub struct {
	*httptest.Server

	mx       sync.Mutex
	accepted []time.Time
	rejects  int

	upgrader websocket.Upgrader
	handle   func(n int, conn *websocket.Conn)
}

func newRelayStub(t *testing.T, rejects int, handle func(n int, conn *websocket.Conn)) *relayStub {
	t.Helper()
	rs := &relayStub{rejects: rejects, handle: handle}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mx.Lock()
		if rs.rejects > 0 {
			rs.rejects--
			rs.mx.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rs.accepted = append(rs.accepted, time.Now())
		n := len(rs.accepted)
		rs.mx.Unlock()

		conn, err := rs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		rs.handle(n, conn)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *relayStub) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func (rs *relayStub) connections() []time.Time {
	rs.mx.Lock()
	defer rs.mx.Unlock()
	return append([]time.Time(nil), rs.accepted...)
}

// drain reads until the client goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newTestManager(url string, delay time.Duration) *Manager {
	logger := zerolog.Nop()
	return NewManager(Config{
		Logger:         &logger,
		URL:            url,
		ReconnectDelay: delay,
	})
}

func runManager(t *testing.T, m *Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return cancel, errc
}

func TestFirstFrameIsGetContent(t *testing.T) {
	first := make(chan string, 1)
	rs := newRelayStub(t, 0, func(_ int, conn *websocket.Conn) {
		_, frame, err := conn.ReadMessage()
		if err == nil {
			first <- string(frame)
		}
		drain(conn)
	})

	m := newTestManager(rs.wsURL(), 50*time.Millisecond)
	runManager(t, m)

	select {
	case frame := <-first:
		assert.JSONEq(t, `{"type":"get_content"}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	require.Eventually(t, func() bool { return m.State() == StateOpen }, time.Second, 5*time.Millisecond)
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	m := newTestManager("ws://127.0.0.1:1/ws", time.Second)

	assert.Equal(t, StateDisconnected, m.State())
	assert.NotPanics(t, func() {
		assert.False(t, m.Send(protocol.Update("lost")))
		assert.False(t, m.Send(protocol.Cursor(1)))
	})
}

func TestSendWhileOpen(t *testing.T) {
	frames := make(chan string, 4)
	rs := newRelayStub(t, 0, func(_ int, conn *websocket.Conn) {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(frame)
		}
	})

	m := newTestManager(rs.wsURL(), 50*time.Millisecond)
	runManager(t, m)
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 5*time.Millisecond)

	require.True(t, m.Send(protocol.Update("hello")))
	assert.JSONEq(t, `{"type":"get_content"}`, <-frames)
	assert.JSONEq(t, `{"type":"update","content":"hello"}`, <-frames)
}

func TestReconnectOnceAfterDelay(t *testing.T) {
	const delay = 200 * time.Millisecond
	closedAt := make(chan time.Time, 1)
	rs := newRelayStub(t, 0, func(n int, conn *websocket.Conn) {
		if n == 1 {
			_, _, _ = conn.ReadMessage()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
			closedAt <- time.Now()
			return
		}
		drain(conn)
	})

	m := newTestManager(rs.wsURL(), delay)
	runManager(t, m)

	var closed time.Time
	select {
	case closed = <-closedAt:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection never closed")
	}

	require.Eventually(t, func() bool { return len(rs.connections()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, rs.connections()[1].Sub(closed), delay)

	// the second connection stays up; nothing else should dial
	time.Sleep(3 * delay)
	assert.Len(t, rs.connections(), 2)
	assert.Equal(t, StateOpen, m.State())
}

func TestDialFailureIsRetried(t *testing.T) {
	const delay = 100 * time.Millisecond
	rs := newRelayStub(t, 2, func(_ int, conn *websocket.Conn) { drain(conn) })

	start := time.Now()
	m := newTestManager(rs.wsURL(), delay)
	runManager(t, m)

	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
	assert.Len(t, rs.connections(), 1)
}

func TestMalformedFrameIsDropped(t *testing.T) {
	rs := newRelayStub(t, 0, func(_ int, conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		for _, frame := range []string{
			`not json at all`,
			`{"type":"update","content":"first"}`,
			`{"content":"no type"}`,
			`{"type":"viewer_count","count":2}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		drain(conn)
	})

	m := newTestManager(rs.wsURL(), time.Second)
	runManager(t, m)

	var got []protocol.Message
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-m.Messages():
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("got %d messages, want 2", len(got))
		}
	}
	assert.Equal(t, []protocol.Message{protocol.Update("first"), protocol.ViewerCount(2)}, got)
	assert.Len(t, rs.connections(), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	rs := newRelayStub(t, 0, func(_ int, conn *websocket.Conn) { drain(conn) })

	m := newTestManager(rs.wsURL(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, StateDisconnected, m.State())
	_, ok := <-m.Messages()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
}

func TestReplacedAuthorDoesNotReconnect(t *testing.T) {
	rs := newRelayStub(t, 0, func(_ int, conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(protocol.CloseReplaced, "replaced"))
		drain(conn)
	})

	m := newTestManager(rs.wsURL(), 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrReplaced)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, rs.connections(), 1)
	assert.Equal(t, StateDisconnected, m.State())
}
