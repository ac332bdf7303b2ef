package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"campuschat/chat"
	"campuschat/logger"
	"campuschat/tools/safe"
)

// Options configures a gateway node.
type Options struct {
	Secret       []byte        // JWT signing secret, required
	Roster       RosterStore   // nil => in-memory
	Bridge       *Bridge       // nil => no NATS mirroring
	AuthTimeout  time.Duration // window for the first (auth) frame
	PingInterval time.Duration
	SendQueue    int
}

func (o *Options) norm() {
	if o.Roster == nil {
		o.Roster = NewMemoryRoster()
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
}

// Server is one gateway node: it upgrades connections, authenticates the
// first frame, and routes every chat event between clients.
type Server struct {
	opts     Options
	registry *Registry
	groups   *GroupTable
	disp     map[string]handlerFunc
	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	opts.norm()
	s := &Server{
		opts:     opts,
		registry: NewRegistry(),
		groups:   NewGroupTable(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.disp = map[string]handlerFunc{
		chat.EventOnline:      (*Server).handleOnline,
		chat.EventCreateGroup: (*Server).handleCreateGroup,
		chat.EventJoinGroup:   (*Server).handleJoinGroup,
		chat.EventSendMessage: (*Server).handleSendMessage,
		chat.EventSendFile:    (*Server).handleSendFile,
		chat.EventTyping:      (*Server).handleTyping,
		chat.EventStopTyping:  (*Server).handleStopTyping,
	}
	return s
}

// Engine builds the HTTP surface.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// HandleWS upgrades, authenticates and then pumps frames until the peer
// goes away.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[gateway] upgrade failed: %v", err)
		return
	}

	identity, ok := s.authenticate(ws)
	if !ok {
		_ = ws.Close()
		return
	}

	conn := newConn(ws, identity, s.opts.SendQueue)
	s.registry.Add(conn)
	safe.Go(func() { conn.writePump(s.opts.PingInterval) })
	s.sendFrame(conn, chat.Frame{Event: chat.EventAuthOK})

	logger.Infof("[gateway] connected conn=%s user=%s", conn.ConnID, identity.UserID)
	s.readLoop(conn)

	// Exit: drop the connection; the roster only changes when the last
	// connection of the user is gone.
	conn.close()
	if last := s.registry.Remove(conn); last {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.opts.Roster.Offline(ctx, identity.UserID)
		cancel()
		s.broadcastRoster()
	}
	logger.Infof("[gateway] disconnected conn=%s user=%s", conn.ConnID, identity.UserID)
}

// authenticate enforces that the very first frame is a valid auth claim
// whose token matches the claimed user id.
func (s *Server) authenticate(ws *websocket.Conn) (chat.Identity, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.AuthTimeout))
	defer ws.SetReadDeadline(time.Time{})

	var frame chat.Frame
	if err := ws.ReadJSON(&frame); err != nil {
		return chat.Identity{}, false
	}
	if frame.Event != chat.EventAuth {
		s.rejectRaw(ws, "auth required")
		return chat.Identity{}, false
	}
	var auth chat.AuthPayload
	if err := json.Unmarshal(frame.Payload, &auth); err != nil {
		s.rejectRaw(ws, "bad auth payload")
		return chat.Identity{}, false
	}
	claims, err := VerifyToken(auth.Token, s.opts.Secret)
	if err != nil {
		s.rejectRaw(ws, "invalid credential")
		return chat.Identity{}, false
	}
	if auth.UserID != "" && auth.UserID != claims.UserID {
		s.rejectRaw(ws, "identity mismatch")
		return chat.Identity{}, false
	}

	identity := chat.Identity{
		UserID:      claims.UserID,
		Username:    claims.Username,
		ProfileName: auth.ProfileName,
	}
	if identity.Username == "" {
		identity.Username = auth.Username
	}
	return identity, true
}

func (s *Server) rejectRaw(ws *websocket.Conn, reason string) {
	frame, _ := chat.NewFrame(chat.EventError, chat.ErrorPayload{Message: reason, Event: chat.EventAuth})
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = ws.WriteJSON(frame)
}

func (s *Server) readLoop(conn *Conn) {
	conn.ws.SetReadLimit(8 << 20)
	_ = conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[gateway] read end conn=%s err=%v", conn.ConnID, err)
			}
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))

		var frame chat.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(conn, "", "", "bad frame")
			continue
		}
		h, ok := s.disp[frame.Event]
		if !ok {
			logger.Debugf("[gateway] no handler event=%s conn=%s", frame.Event, conn.ConnID)
			continue
		}
		if err := h(s, conn, frame.Payload); err != nil {
			logger.Warnf("[gateway] handler event=%s user=%s err=%v", frame.Event, conn.Identity.UserID, err)
		}
	}
}

// --- outbound helpers ---

func (s *Server) sendFrame(conn *Conn, frame chat.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	conn.queue(data)
}

func (s *Server) sendEvent(conn *Conn, event string, payload any) {
	frame, err := chat.NewFrame(event, payload)
	if err != nil {
		logger.Warnf("[gateway] build frame event=%s err=%v", event, err)
		return
	}
	s.sendFrame(conn, frame)
}

// sendToUser fans one event out to every connection of a user and mirrors
// it on the bridge.
func (s *Server) sendToUser(userID string, event string, payload any) {
	frame, err := chat.NewFrame(event, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	for _, c := range s.registry.ConnsFor(userID) {
		c.queue(data)
	}
	s.opts.Bridge.PublishDelivery(userID, frame)
}

// sendToUserExcept is sendToUser minus one connection, for echoing a send
// to the sender's other tabs without duplicating the originating one.
func (s *Server) sendToUserExcept(userID, exceptConnID, event string, payload any) {
	frame, err := chat.NewFrame(event, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	for _, c := range s.registry.ConnsFor(userID) {
		if c.ConnID == exceptConnID {
			continue
		}
		c.queue(data)
	}
	s.opts.Bridge.PublishDelivery(userID, frame)
}

func (s *Server) sendError(conn *Conn, event, groupID, msg string) {
	s.sendEvent(conn, chat.EventError, chat.ErrorPayload{Message: msg, Event: event, GroupID: groupID})
}

// broadcastRoster pushes the full presence snapshot to everyone.
func (s *Server) broadcastRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	snapshot, err := s.opts.Roster.Snapshot(ctx)
	cancel()
	if err != nil {
		logger.Errorf("[gateway] roster snapshot: %v", err)
		return
	}
	frame, err := chat.NewFrame(chat.EventUpdateUsers, snapshot)
	if err != nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	for _, c := range s.registry.All() {
		c.queue(data)
	}
}
