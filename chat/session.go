package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campuschat/logger"
	"campuschat/tools/errs"
	"campuschat/tools/safe"
)

// State is the connection lifecycle. Terminal only on explicit Close.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds everything a session needs to establish itself. Identity and
// Token come from the surrounding auth layer and are fixed for the session.
type Config struct {
	URL      string
	Identity Identity
	Token    string

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	SendQueue        int
}

func (c *Config) norm() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 64
	}
}

// Session owns the WebSocket and is the only component that touches it.
// Inbound frames fan out through the Bus; outbound frames all pass through
// Emit. Everything else in the package is transport-agnostic.
type Session struct {
	cfg Config
	bus *Bus

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	sendCh chan Frame
	done   chan struct{}
	closed bool

	onState func(State)
}

func NewSession(cfg Config, bus *Bus) *Session {
	cfg.norm()
	return &Session{cfg: cfg, bus: bus, state: StateDisconnected}
}

// OnStateChange registers a listener invoked after every state transition.
// Must be set before Connect.
func (s *Session) OnStateChange(fn func(State)) { s.onState = fn }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// Connect dials the gateway, authenticates, announces the identity and
// starts the pumps. Also used for reconnect attempts: each call builds a
// fresh connection, nothing from a previous one is replayed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errs.ErrConnection.WrapMsg("session closed")
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.setState(StateDisconnected)
		return errs.ErrConnection.WrapMsg("dial", "url", s.cfg.URL, "err", err.Error())
	}

	if err := s.handshake(conn); err != nil {
		_ = conn.Close()
		s.setState(StateDisconnected)
		return err
	}

	done := make(chan struct{})
	sendCh := make(chan Frame, s.cfg.SendQueue)

	s.mu.Lock()
	s.conn = conn
	s.sendCh = sendCh
	s.done = done
	s.mu.Unlock()

	s.setState(StateConnected)

	safe.Go(func() { s.writePump(conn, sendCh, done) })
	safe.Go(func() { s.readPump(conn, done) })

	// Local online announce so the gateway can broadcast the roster.
	return s.Emit(EventOnline, s.cfg.Identity)
}

// handshake sends the auth claim and waits for the gateway's verdict.
func (s *Session) handshake(conn *websocket.Conn) error {
	auth := AuthPayload{
		Token:       s.cfg.Token,
		UserID:      s.cfg.Identity.UserID,
		Username:    s.cfg.Identity.Username,
		ProfileName: s.cfg.Identity.ProfileName,
	}
	frame, err := NewFrame(EventAuth, auth)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(s.cfg.HandshakeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame); err != nil {
		return errs.ErrConnection.WrapMsg("send auth", "err", err.Error())
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			return errs.ErrConnection.WrapMsg("read auth reply", "err", err.Error())
		}
		switch in.Event {
		case EventAuthOK:
			_ = conn.SetReadDeadline(time.Time{})
			return nil
		case EventError:
			reason := "rejected"
			if p, derr := decodePayload[ErrorPayload](in.Payload); derr == nil {
				reason = p.Message
			}
			return errs.ErrAuth.WrapMsg(reason)
		default:
			// The gateway should not talk before the verdict; tolerate it.
			s.bus.Publish(in.Event, in.Payload)
		}
	}
}

// Emit marshals payload and queues the frame for the writer.
func (s *Session) Emit(event string, payload any) error {
	frame, err := NewFrame(event, payload)
	if err != nil {
		return err
	}
	return s.Send(frame)
}

// Send queues a frame. Fails fast when disconnected or when the queue is
// full; a queued frame is not withdrawable.
func (s *Session) Send(frame Frame) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return errs.ErrConnection.WrapMsg("not connected", "event", frame.Event)
	}
	ch := s.sendCh
	s.mu.Unlock()

	select {
	case ch <- frame:
		return nil
	default:
		return errs.ErrConnection.WrapMsg("send queue full", "event", frame.Event)
	}
}

func (s *Session) readPump(conn *websocket.Conn, done chan struct{}) {
	defer s.teardown(conn, done)

	conn.SetReadLimit(8 << 20) // attachments travel inline
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[session] peer closed user=%s", s.cfg.Identity.UserID)
			} else {
				logger.Warnf("[session] read error user=%s err=%v", s.cfg.Identity.UserID, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[session] bad frame err=%v sample=%q", err, sample)
			continue
		}
		s.bus.Publish(frame.Event, frame.Payload)
	}
}

func (s *Session) writePump(conn *websocket.Conn, sendCh chan Frame, done chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Warnf("[session] write error event=%s err=%v", frame.Event, err)
				return
			}
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-done:
			return
		}
	}
}

// teardown runs once per connection, whichever pump dies first.
func (s *Session) teardown(conn *websocket.Conn, done chan struct{}) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	select {
	case <-done:
	default:
		close(done)
	}
	s.mu.Unlock()

	_ = conn.Close()
	s.setState(StateDisconnected)
}

// Close tears the session down for good. Subsequent Connect calls fail.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}
