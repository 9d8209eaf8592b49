package domain

import "time"

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type MenuItem struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name" validate:"required,max=200"`
	Description  string    `json:"description"`
	PriceCents   int64     `json:"price_cents" validate:"gte=0"`
	CategoryID   int64     `json:"category_id" validate:"required,gt=0"`
	CategoryName string    `json:"category_name,omitempty"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MenuItemFilter struct {
	CategoryID    int64
	AvailableOnly bool
}

type Table struct {
	ID          int64 `json:"id"`
	TableNumber int   `json:"table_number" validate:"required,gt=0"`
	IsOccupied  bool  `json:"is_occupied"`
}

type BrokenItem struct {
	ID          int64      `json:"id"`
	ItemName    string     `json:"item_name" validate:"required,max=200"`
	Description string     `json:"description"`
	ReportedBy  string     `json:"reported_by" validate:"required,max=100"`
	ReportedAt  time.Time  `json:"reported_at"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}
