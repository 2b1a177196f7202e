package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController owns the websocket side of the relay protocol:
// upgrade, pumps, message dispatch and session teardown.
type SignalWSController struct {
	Rooms   *app.RoomStore
	Relay   *app.Relay
	Limiter *JoinLimiter

	cfg *config.Config
}

func NewSignalWSController(cfg *config.Config, rooms *app.RoomStore, relay *app.Relay) *SignalWSController {
	return &SignalWSController{
		Rooms:   rooms,
		Relay:   relay,
		Limiter: NewJoinLimiter(cfg.JoinLimit, cfg.JoinWindow),
		cfg:     cfg,
	}
}

// WsSignalConn is the transport handle a room stores for one client.
// TrySend never blocks: a full buffer or a closed socket drops the frame.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	// The session lives and dies with this connection's read loop.
	sess := &core.Session{}
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, sess, conn)
	}()
}

func nowMillis() int64 { return time.Now().UnixMilli() }
