package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orderhub/domain"
)

// Close codes sent when a session refuses to open.
const (
	CloseNotFound = 4404
	CloseInvalid  = 4400
)

// maxCloseReason is the room left for a reason in a close frame.
const maxCloseReason = 123

// Config tunes the per-connection pumps.
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		MaxMessageSize: 4096,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
	}
}

func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Conn adapts a gorilla websocket to domain.Connection. Outbound frames go
// through a bounded queue drained by a single writer goroutine.
type Conn struct {
	id      string
	subject string
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	session domain.SessionHandler
	cfg     Config
	log     *zap.Logger
}

func NewConn(id, subject string, ws *websocket.Conn, session domain.SessionHandler, cfg Config, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	return &Conn{
		id:      id,
		subject: subject,
		ws:      ws,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		session: session,
		cfg:     cfg,
		log:     log.With(zap.String("conn_id", id)),
	}
}

func (c *Conn) ID() string      { return c.id }
func (c *Conn) Subject() string { return c.subject }

// Send queues data without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return domain.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return domain.ErrConnClosed
	default:
		return domain.ErrSendBufferFull
	}
}

// Close stops the writer, which closes the socket. Safe to call repeatedly
// and from any goroutine.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Start opens the session and runs the pumps in the background.
func (c *Conn) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Conn) run(ctx context.Context) {
	if err := c.open(ctx); err != nil {
		c.reject(err)
		return
	}
	c.log.Debug("session opened", zap.String("subject", c.subject))

	go c.writePump()
	c.readPump(ctx)

	c.closeSession()
	c.Close()
	c.log.Debug("session closed")
}

// open runs the session's Open hook. A panic is reported as an error after
// the connection is released from any group it already joined.
func (c *Conn) open(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("session open panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.closeSession()
			err = fmt.Errorf("session open panicked: %v", r)
		}
	}()
	return c.session.Open(ctx, c)
}

func (c *Conn) handle(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("session handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	c.session.Handle(ctx, c, data)
}

func (c *Conn) closeSession() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("session close panicked", zap.Any("panic", r))
		}
	}()
	c.session.Close(c)
}

func (c *Conn) reject(err error) {
	code := closeCode(err)
	reason := err.Error()
	if code == websocket.CloseInternalServerErr {
		c.log.Error("session open failed", zap.String("subject", c.subject), zap.Error(err))
		reason = "internal error"
	} else {
		c.log.Info("session rejected", zap.String("subject", c.subject), zap.Error(err))
	}
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
	c.Close()
	c.ws.Close()
}

// truncateReason fits reason into a close frame without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	n := maxCloseReason
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CloseNotFound
	case domain.IsValidation(err):
		return CloseInvalid
	}
	return websocket.CloseInternalServerErr
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.ws.Close()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", zap.Error(err))
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
