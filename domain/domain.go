package domain

import (
	"context"
	"strconv"
)

// Broad groups are shared by every client of a role.
const (
	GroupOrders     = "orders"
	GroupMenuOrders = "menu_orders"
)

// OrderGroup is the scoped group of clients tracking one order.
func OrderGroup(orderID int64) string {
	return "order_" + strconv.FormatInt(orderID, 10)
}

// ChatGroup is the scoped group of clients chatting about one order.
func ChatGroup(orderID int64) string {
	return "chat_" + strconv.FormatInt(orderID, 10)
}

// Connection is one realtime duplex channel to a single client.
// Subject is the entity the connection was opened for (an order id for scoped
// endpoints, empty for broad ones).
type Connection interface {
	ID() string
	Subject() string
	Send(data []byte) error
	Close() error
}

// Registry maps group names to their live member connections.
type Registry interface {
	Join(group string, conn Connection)
	Leave(group string, conn Connection)
	LeaveAll(conn Connection)
	Publish(group string, env Envelope) int
	Stats() (groups, connections int)
}

// SessionHandler governs what a connection may do over its lifetime.
// Open returning an error rejects the connection before any group is joined.
type SessionHandler interface {
	Open(ctx context.Context, conn Connection) error
	Handle(ctx context.Context, conn Connection, data []byte)
	Close(conn Connection)
}
