package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aulalive/signaling/internal/app"
	"github.com/aulalive/signaling/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller terminates WebSocket connections and feeds parsed frames
// to the router. It owns the connection wrappers and their pumps.
type Controller struct {
	Router    *app.Router
	ReadLimit int64
}

func NewController(router *app.Router, readLimit int64) *Controller {
	return &Controller{Router: router, ReadLimit: readLimit}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Terminate drops the socket without a close handshake. The read pump
// observes the error and runs the session cleanup.
func (c *wsConn) Terminate() {
	_ = c.conn.Close()
}

// HandleSignal upgrades the request and starts the per-connection
// pumps. The session starts in the Connecting state; identity and room
// arrive with the first join frame.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	// One browser can open several tabs on the same cookie token, so
	// the session id carries a per-connection suffix.
	sid := core.SessionID(c.GetString("client_token") + ":" + uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	sess := app.NewSession(sid, conn)
	ws.SetPongHandler(func(string) error {
		sess.MarkAlive()
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	ctl.Router.Registry.Bind(sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sess, conn)
}
