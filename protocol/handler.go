// Package protocol implements the realtime session handlers: what a
// connection receives when it opens, which commands it may send, and how
// failures are reported back to it.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"orderhub/domain"
)

// Command types accepted over realtime connections.
const (
	CmdPing         = "ping"
	CmdGetStatus    = "get_status"
	CmdStatusUpdate = "status_update"
	CmdCreateOrder  = "create_order"
	CmdChatMessage  = "chat_message"
)

// Command is an inbound realtime message. Only Type is common to all
// commands; the other fields belong to specific command types.
type Command struct {
	Type       string           `json:"type"`
	Status     string           `json:"status,omitempty"`
	Order      *domain.NewOrder `json:"order,omitempty"`
	Message    string           `json:"message,omitempty"`
	SenderType string           `json:"sender_type,omitempty"`
}

type commandFunc func(ctx context.Context, conn domain.Connection, cmd Command) error

// dispatcher routes a command to the function registered for its type.
type dispatcher struct {
	name          string
	handlers      map[string]commandFunc
	ignoreUnknown bool
	log           *zap.Logger
}

// newDispatcher panics unless table holds exactly one function per accepted
// command, so a handler cannot silently drop a command it claims to support.
func newDispatcher(name string, accepted []string, table map[string]commandFunc, ignoreUnknown bool, log *zap.Logger) *dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	want := make(map[string]struct{}, len(accepted))
	for _, c := range accepted {
		want[c] = struct{}{}
		if table[c] == nil {
			panic(fmt.Sprintf("protocol: %s handler accepts %q but has no function for it", name, c))
		}
	}
	for c := range table {
		if _, ok := want[c]; !ok {
			panic(fmt.Sprintf("protocol: %s handler has a function for undeclared command %q", name, c))
		}
	}
	return &dispatcher{name: name, handlers: table, ignoreUnknown: ignoreUnknown, log: log.With(zap.String("handler", name))}
}

// Handle decodes one inbound message and runs its command. Every failure is
// answered on conn; the connection always stays open.
func (d *dispatcher) Handle(ctx context.Context, conn domain.Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("command panicked", zap.String("conn_id", conn.ID()), zap.Any("panic", r))
			d.reply(conn, domain.ErrorEnvelope("internal error"))
		}
	}()

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		d.log.Warn("invalid message", zap.String("conn_id", conn.ID()), zap.Error(err))
		d.reply(conn, domain.ErrorEnvelope("invalid message: expected a JSON object"))
		return
	}
	if cmd.Type == "" {
		d.reply(conn, domain.ErrorEnvelope("invalid message: missing type"))
		return
	}

	fn, ok := d.handlers[cmd.Type]
	if !ok {
		if d.ignoreUnknown {
			d.log.Info("unknown command ignored", zap.String("conn_id", conn.ID()), zap.String("command", cmd.Type))
			return
		}
		d.reply(conn, domain.ErrorEnvelope(fmt.Sprintf("unknown command type %q", cmd.Type)))
		return
	}

	if err := fn(ctx, conn, cmd); err != nil {
		d.fail(conn, cmd.Type, err)
	}
}

func (d *dispatcher) fail(conn domain.Connection, command string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		d.reply(conn, domain.ErrorEnvelope(ve.Error()))
	case errors.Is(err, domain.ErrNotFound):
		d.reply(conn, domain.ErrorEnvelope("not found"))
	default:
		d.log.Error("command failed", zap.String("conn_id", conn.ID()), zap.String("command", command), zap.Error(err))
		d.reply(conn, domain.ErrorEnvelope("internal error"))
	}
}

func (d *dispatcher) reply(conn domain.Connection, env domain.Envelope) {
	if err := send(conn, env); err != nil {
		d.log.Warn("reply failed", zap.String("conn_id", conn.ID()), zap.String("kind", string(env.Kind)), zap.Error(err))
	}
}

func send(conn domain.Connection, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Send(data)
}

func ping(_ context.Context, conn domain.Connection, _ Command) error {
	return send(conn, domain.PongEnvelope())
}

// subjectOrderID resolves the order a scoped connection was opened for.
func subjectOrderID(conn domain.Connection) (int64, error) {
	id, err := strconv.ParseInt(conn.Subject(), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("order_id", fmt.Sprintf("invalid order id %q", conn.Subject()))
	}
	return id, nil
}
