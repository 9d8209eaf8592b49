package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusPaid,
	StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Order struct {
	ID           int64       `json:"id"`
	TableID      int64       `json:"table_id"`
	Status       OrderStatus `json:"status"`
	TotalCents   int64       `json:"total_cents"`
	TrackingCode string      `json:"tracking_code"`
	UserAgent    string      `json:"user_agent,omitempty"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID             int64  `json:"id"`
	MenuItemID     int64  `json:"menu_item_id"`
	MenuItemName   string `json:"menu_item_name"`
	Quantity       int    `json:"quantity"`
	Notes          string `json:"notes,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// NewOrder is the validated input for order creation.
type NewOrder struct {
	TableID   int64          `json:"table_id" validate:"required,gt=0"`
	Items     []NewOrderItem `json:"items" validate:"required,min=1,dive"`
	UserAgent string         `json:"user_agent,omitempty" validate:"max=512"`
}

type NewOrderItem struct {
	MenuItemID int64  `json:"menu_item_id" validate:"required,gt=0"`
	Quantity   int    `json:"quantity" validate:"required,min=1,max=99"`
	Notes      string `json:"notes,omitempty" validate:"max=500"`
}

// OrderUpdate changes the non-nil fields of an order.
type OrderUpdate struct {
	Status  *OrderStatus
	TableID *int64
}

// OrderFilter narrows ListOrders. Zero values match everything; results are
// newest first.
type OrderFilter struct {
	TableID int64
	Status  OrderStatus
	Date    time.Time
	Limit   int
}
