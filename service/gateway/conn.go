package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campuschat/chat"
	"campuschat/logger"
)

// Conn is one authenticated client connection. A user may hold several
// (multiple tabs); each gets its own send queue drained by a single
// writer goroutine.
type Conn struct {
	ConnID   string
	Identity chat.Identity

	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, identity chat.Identity, queue int) *Conn {
	return &Conn{
		ConnID:   uuid.NewString(),
		Identity: identity,
		ws:       ws,
		send:     make(chan []byte, queue),
		done:     make(chan struct{}),
	}
}

// queue enqueues without blocking. A slow client drops frames rather than
// stalling the gateway.
func (c *Conn) queue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		logger.Warnf("[gateway] send queue full conn=%s user=%s", c.ConnID, c.Identity.UserID)
		return false
	}
}

func (c *Conn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.done:
			return
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Registry indexes live connections by conn id and by user.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Conn
	byUser map[string]map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
	}
}

func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[c.ConnID] = c
	userConns := r.byUser[c.Identity.UserID]
	if userConns == nil {
		userConns = make(map[string]*Conn)
		r.byUser[c.Identity.UserID] = userConns
	}
	userConns[c.ConnID] = c
}

// Remove drops the connection and reports whether it was the user's last.
func (r *Registry) Remove(c *Conn) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, c.ConnID)
	if userConns := r.byUser[c.Identity.UserID]; userConns != nil {
		delete(userConns, c.ConnID)
		if len(userConns) == 0 {
			delete(r.byUser, c.Identity.UserID)
			return true
		}
	}
	return false
}

// ConnsFor returns every live connection of one user.
func (r *Registry) ConnsFor(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userConns := r.byUser[userID]
	out := make([]*Conn, 0, len(userConns))
	for _, c := range userConns {
		out = append(out, c)
	}
	return out
}

// All returns every live connection.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
