package websocket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orderhub/domain"
)

// SubjectFunc extracts the scope of a connection, such as an order id, from
// the upgrade request. Unscoped endpoints return "".
type SubjectFunc func(r *http.Request) string

// Endpoint upgrades HTTP requests and hands each connection to a session
// handler.
type Endpoint struct {
	upgrader websocket.Upgrader
	session  domain.SessionHandler
	subject  SubjectFunc
	cfg      Config
	log      *zap.Logger
}

func NewEndpoint(session domain.SessionHandler, subject SubjectFunc, cfg Config, log *zap.Logger) *Endpoint {
	if log == nil {
		log = zap.NewNop()
	}
	if subject == nil {
		subject = func(*http.Request) string { return "" }
	}
	return &Endpoint{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		session: session,
		subject: subject,
		cfg:     cfg,
		log:     log,
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject := e.subject(r)
	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.log.Warn("upgrade error", zap.String("path", r.URL.Path), zap.Error(err))
		return
	}

	conn := NewConn(uuid.NewString(), subject, ws, e.session, e.cfg, e.log)
	// The request context ends when ServeHTTP returns; the session outlives it.
	conn.Start(context.WithoutCancel(r.Context()))
}
