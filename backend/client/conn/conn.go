package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adwski/livepost/backend/protocol"
	"github.com/avast/retry-go/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrReplaced ends Run when the relay handed the document to another author.
var ErrReplaced = errors.New("replaced by another author")

const (
	DefaultReconnectDelay = 3000 * time.Millisecond

	defaultInboxSize = 64

	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketMaxMessageSize     = 1 << 20
	defaultWebSocketWriteDeadline      = 5 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second

	// defaultPongWait - defaultPingInterval == is how long we give server to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

type (
	Config struct {
		Logger *zerolog.Logger
		URL    string

		// ReconnectDelay defaults to DefaultReconnectDelay.
		ReconnectDelay time.Duration
	}

	Manager struct {
		url            string
		reconnectDelay time.Duration
		dialer         *websocket.Dialer
		inbox          chan protocol.Message
		state          atomic.Int32

		wmx  sync.Mutex // guards conn and serializes data frame writes
		conn *websocket.Conn

		logger zerolog.Logger
	}
)

func NewManager(cfg Config) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Manager{
		url:            cfg.URL,
		reconnectDelay: delay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
		},
		inbox:  make(chan protocol.Message, defaultInboxSize),
		logger: cfg.Logger.With().Str("component", "connection").Logger(),
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Messages delivers decoded inbound messages in the order the server sent
// them. The channel is closed when Run returns.
func (m *Manager) Messages() <-chan protocol.Message {
	return m.inbox
}

// Run keeps the session connected until ctx is done or the relay closes it
// with protocol.CloseReplaced. Only one connection is ever active, and a lost
// connection is retried exactly once per delay.
func (m *Manager) Run(ctx context.Context) error {
	defer func() {
		close(m.inbox)
		m.logger.Debug().Msg("connection manager stopped")
	}()

	for {
		conn, err := m.connect(ctx)
		if err != nil {
			return err
		}
		if err = m.serve(ctx, conn); err != nil {
			return err
		}

		m.logger.Info().Dur("delay", m.reconnectDelay).Msg("reconnect scheduled")
		timer := time.NewTimer(m.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Send writes msg if the connection is open and silently drops it otherwise.
// It reports whether the frame was written.
func (m *Manager) Send(msg protocol.Message) bool {
	m.wmx.Lock()
	defer m.wmx.Unlock()

	if m.conn == nil || m.State() != StateOpen {
		m.logger.Debug().Str("type", string(msg.Kind)).Msg("not connected, message dropped")
		return false
	}
	return m.writeLocked(msg)
}

func (m *Manager) writeLocked(msg protocol.Message) bool {
	b, err := protocol.Encode(msg)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to encode outgoing message")
		return false
	}
	if err = m.conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline)); err != nil {
		m.logger.Error().Err(err).Msg("failed to set websocket write deadline")
		return false
	}
	if err = m.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		m.logger.Error().Err(err).Msg("failed to write outgoing message")
		return false
	}
	return true
}

func (m *Manager) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.New(
		retry.Attempts(0),
		retry.Delay(m.reconnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		m.dial()
		c, _, err := m.dialer.DialContext(ctx, m.url, nil)
		if err != nil {
			m.closed()
			m.logger.Error().Err(err).Str("url", m.url).Msg("websocket dial failed")
			return err
		}
		conn = c
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	m.opened(conn)
	m.logger.Info().Str("url", m.url).Msg("connected")

	done := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.keepalive(done, conn)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			webSocketCloser(conn, &m.logger)
		case <-done:
		}
	}()

	err := m.receive(ctx, conn)
	close(done)
	wg.Wait()

	m.closed()
	_ = conn.Close()
	return err
}

// receive returns ErrReplaced when the relay evicted this session, and nil
// for every other way the connection ends.
func (m *Manager) receive(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func() error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	}
	conn.SetPongHandler(func(string) error {
		m.logger.Trace().Msg("got pong")
		return readDeadLineFunc()
	})
	if err := readDeadLineFunc(); err != nil {
		m.logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return nil
	}

	for {
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, protocol.CloseReplaced):
				m.logger.Warn().Err(err).Msg("another author took over, not reconnecting")
				return ErrReplaced
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				m.logger.Warn().Err(err).Msg("connection closed")
			case ctx.Err() != nil:
				m.logger.Debug().Msg("connection closed on shutdown")
			default:
				m.logger.Error().Err(err).Msg("transport error")
			}
			return nil
		}
		if err = readDeadLineFunc(); err != nil {
			m.logger.Error().Err(err).Msg("failed to set websocket read deadline")
			return nil
		}
		if mt != websocket.TextMessage {
			m.logger.Debug().Int("frameType", mt).Msg("non-text frame ignored")
			continue
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			m.logger.Warn().Err(err).Msg("malformed frame dropped")
			continue
		}
		select {
		case m.inbox <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Manager) keepalive(done <-chan struct{}, conn *websocket.Conn) {
	ticker := time.NewTicker(defaultPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWebSocketWriteDeadline))
			if err != nil {
				m.logger.Error().Err(err).Msg("failed to send ping")
				continue
			}
			m.logger.Trace().Msg("ping sent")
		}
	}
}

func (m *Manager) dial() {
	m.state.Store(int32(StateConnecting))
}

// opened publishes the connection and writes the bootstrap request before any
// other sender can get the lock. The server answers with the current content.
func (m *Manager) opened(conn *websocket.Conn) {
	m.wmx.Lock()
	defer m.wmx.Unlock()
	m.conn = conn
	m.state.Store(int32(StateOpen))
	m.writeLocked(protocol.GetContent())
}

func (m *Manager) closed() {
	m.wmx.Lock()
	defer m.wmx.Unlock()
	m.conn = nil
	m.state.Store(int32(StateDisconnected))
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if err != nil {
		logger.Error().Err(err).Msg("failed to close websocket connection")
	}
	if err = conn.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close websocket connection")
	}
}
