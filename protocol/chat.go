package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderhub/domain"
)

// ChatService is what the chat session needs from the chat mutation hooks.
type ChatService interface {
	Post(ctx context.Context, in domain.NewChatMessage) (domain.ChatMessage, error)
	History(ctx context.Context, orderID int64) ([]domain.ChatMessage, error)
}

// Chat serves /ws/chat/{order_id}/.
type Chat struct {
	*dispatcher
	registry domain.Registry
	orders   OrderService
	chat     ChatService
	log      *zap.Logger
}

func NewChat(registry domain.Registry, orders OrderService, chat ChatService, log *zap.Logger) *Chat {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chat{registry: registry, orders: orders, chat: chat, log: log}
	c.dispatcher = newDispatcher("chat",
		[]string{CmdPing, CmdChatMessage},
		map[string]commandFunc{
			CmdPing:        ping,
			CmdChatMessage: c.postMessage,
		}, false, log)
	return c
}

// Open joins the order's chat group and sends the full history, oldest first.
func (c *Chat) Open(ctx context.Context, conn domain.Connection) error {
	id, err := subjectOrderID(conn)
	if err != nil {
		return err
	}
	if _, err := c.orders.Get(ctx, id); err != nil {
		return fmt.Errorf("order %d: %w", id, err)
	}

	c.registry.Join(domain.ChatGroup(id), conn)
	c.log.Info("chat opened", zap.String("conn_id", conn.ID()), zap.Int64("order_id", id))

	history, err := c.chat.History(ctx, id)
	if err != nil {
		c.log.Error("chat history", zap.String("conn_id", conn.ID()), zap.Int64("order_id", id), zap.Error(err))
		c.reply(conn, domain.ErrorEnvelope("internal error"))
		return nil
	}
	c.reply(conn, domain.ChatHistoryEnvelope(history))
	return nil
}

func (c *Chat) Close(conn domain.Connection) {
	c.registry.LeaveAll(conn)
}

func (c *Chat) postMessage(ctx context.Context, conn domain.Connection, cmd Command) error {
	id, err := subjectOrderID(conn)
	if err != nil {
		return err
	}
	_, err = c.chat.Post(ctx, domain.NewChatMessage{
		OrderID:    id,
		Message:    cmd.Message,
		SenderType: domain.SenderType(cmd.SenderType),
	})
	return err
}

var (
	_ domain.SessionHandler = (*Tracking)(nil)
	_ domain.SessionHandler = (*Board)(nil)
	_ domain.SessionHandler = (*Chat)(nil)
)
