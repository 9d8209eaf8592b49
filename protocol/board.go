package protocol

import (
	"context"

	"go.uber.org/zap"

	"orderhub/domain"
)

// Board serves the broad order feeds: /ws/orders/ (admin dashboard) and
// /ws/menu-orders/ (kitchen and menu board, which may also place orders).
type Board struct {
	*dispatcher
	group    string
	registry domain.Registry
	orders   OrderService
	limit    int
	log      *zap.Logger
}

// NewOrdersBoard builds the read-only dashboard feed on the orders group.
func NewOrdersBoard(registry domain.Registry, orders OrderService, limit int, log *zap.Logger) *Board {
	b := newBoard(domain.GroupOrders, registry, orders, limit, log)
	b.dispatcher = newDispatcher("orders-board",
		[]string{CmdPing},
		map[string]commandFunc{
			CmdPing: ping,
		}, true, b.log)
	return b
}

// NewKitchenBoard builds the menu_orders feed, which accepts create_order.
func NewKitchenBoard(registry domain.Registry, orders OrderService, limit int, log *zap.Logger) *Board {
	b := newBoard(domain.GroupMenuOrders, registry, orders, limit, log)
	b.dispatcher = newDispatcher("kitchen-board",
		[]string{CmdPing, CmdCreateOrder},
		map[string]commandFunc{
			CmdPing:        ping,
			CmdCreateOrder: b.createOrder,
		}, true, b.log)
	return b
}

func newBoard(group string, registry domain.Registry, orders OrderService, limit int, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{group: group, registry: registry, orders: orders, limit: limit, log: log}
}

// Open joins the board's group before reading the snapshot, so no order
// committed in between is missed.
func (b *Board) Open(ctx context.Context, conn domain.Connection) error {
	b.registry.Join(b.group, conn)
	b.log.Info("board opened", zap.String("conn_id", conn.ID()), zap.String("group", b.group))

	recent, err := b.orders.Recent(ctx, b.limit)
	if err != nil {
		b.log.Error("initial orders", zap.String("conn_id", conn.ID()), zap.Error(err))
		b.reply(conn, domain.ErrorEnvelope("internal error"))
		return nil
	}
	b.reply(conn, domain.InitialOrdersEnvelope(recent))
	return nil
}

func (b *Board) Close(conn domain.Connection) {
	b.registry.LeaveAll(conn)
}

// createOrder does not echo the order; the creator hears new_order through
// its own group membership.
func (b *Board) createOrder(ctx context.Context, _ domain.Connection, cmd Command) error {
	if cmd.Order == nil {
		return domain.Invalid("order", "is required")
	}
	_, err := b.orders.Create(ctx, *cmd.Order)
	return err
}
