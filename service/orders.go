// Package service holds the domain mutation hooks: every state change that
// clients must hear about goes through here, and the matching event is
// published only after the Data Store has committed it.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderhub/domain"
)

// Events is the publishing side of the event bus.
type Events interface {
	OrderCreated(o domain.Order) int
	OrderUpdated(o domain.Order) int
	ChatMessageSaved(m domain.ChatMessage) int
}

type Orders struct {
	store    domain.OrderStore
	events   Events
	validate *Validator
	log      *zap.Logger
}

func NewOrders(store domain.OrderStore, events Events, log *zap.Logger) *Orders {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orders{store: store, events: events, validate: NewValidator(), log: log}
}

// Create validates and stores a new order, then announces it.
func (s *Orders) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	items := make([]domain.NewOrderItem, len(in.Items))
	for i, it := range in.Items {
		it.Notes = cleanText(it.Notes)
		items[i] = it
	}
	in.Items = items

	if err := s.validate.Struct(in); err != nil {
		return domain.Order{}, err
	}
	order, err := s.store.CreateOrder(ctx, in)
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created", zap.Int64("order_id", order.ID), zap.Int64("table_id", order.TableID))
	s.events.OrderCreated(order)
	return order, nil
}

// UpdateStatus is shared by the HTTP path and the realtime tracking
// connection, so both enforce the same allowed set.
func (s *Orders) UpdateStatus(ctx context.Context, id int64, status string) (domain.Order, error) {
	if err := s.validate.Var("status", status, statusTag); err != nil {
		return domain.Order{}, err
	}
	st := domain.OrderStatus(status)
	order, err := s.store.UpdateOrder(ctx, id, domain.OrderUpdate{Status: &st})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order status changed", zap.Int64("order_id", id), zap.String("status", status))
	s.events.OrderUpdated(order)
	return order, nil
}

// AssignTable moves an order to another table.
func (s *Orders) AssignTable(ctx context.Context, id, tableID int64) (domain.Order, error) {
	if err := s.validate.Var("table_id", tableID, "required,gt=0"); err != nil {
		return domain.Order{}, err
	}
	order, err := s.store.UpdateOrder(ctx, id, domain.OrderUpdate{TableID: &tableID})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order moved", zap.Int64("order_id", id), zap.Int64("table_id", tableID))
	s.events.OrderUpdated(order)
	return order, nil
}

func (s *Orders) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// Recent returns up to limit orders, newest first.
func (s *Orders) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("recent orders: limit must be positive, got %d", limit)
	}
	return s.store.ListOrders(ctx, domain.OrderFilter{Limit: limit})
}

func (s *Orders) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("invalid status %q", f.Status))
	}
	return s.store.ListOrders(ctx, f)
}

func (s *Orders) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteOrder(ctx, id)
}
