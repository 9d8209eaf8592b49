package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderhub/domain"
)

// OrderService is what session handlers need from the order mutation hooks.
type OrderService interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	Recent(ctx context.Context, limit int) ([]domain.Order, error)
	Create(ctx context.Context, in domain.NewOrder) (domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (domain.Order, error)
}

// Tracking serves /ws/order/{order_id}/: a customer or waiter following one
// order.
type Tracking struct {
	*dispatcher
	registry domain.Registry
	orders   OrderService
	log      *zap.Logger
}

func NewTracking(registry domain.Registry, orders OrderService, log *zap.Logger) *Tracking {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracking{registry: registry, orders: orders, log: log}
	t.dispatcher = newDispatcher("tracking",
		[]string{CmdPing, CmdGetStatus, CmdStatusUpdate},
		map[string]commandFunc{
			CmdPing:         ping,
			CmdGetStatus:    t.getStatus,
			CmdStatusUpdate: t.statusUpdate,
		}, false, log)
	return t
}

// Open rejects connections for orders that do not exist; otherwise it joins
// the order's group and sends the current order.
func (t *Tracking) Open(ctx context.Context, conn domain.Connection) error {
	id, err := subjectOrderID(conn)
	if err != nil {
		return err
	}
	order, err := t.orders.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("order %d: %w", id, err)
	}

	t.registry.Join(domain.OrderGroup(id), conn)
	t.log.Info("tracking opened", zap.String("conn_id", conn.ID()), zap.Int64("order_id", id))
	t.reply(conn, domain.OrderUpdateEnvelope(order))
	return nil
}

func (t *Tracking) Close(conn domain.Connection) {
	t.registry.LeaveAll(conn)
}

func (t *Tracking) getStatus(ctx context.Context, conn domain.Connection, _ Command) error {
	id, err := subjectOrderID(conn)
	if err != nil {
		return err
	}
	order, err := t.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	return send(conn, domain.OrderUpdateEnvelope(order))
}

// statusUpdate applies the change through the shared mutation hook. The
// resulting order_update reaches this connection through its group.
func (t *Tracking) statusUpdate(ctx context.Context, conn domain.Connection, cmd Command) error {
	id, err := subjectOrderID(conn)
	if err != nil {
		return err
	}
	_, err = t.orders.UpdateStatus(ctx, id, cmd.Status)
	return err
}
