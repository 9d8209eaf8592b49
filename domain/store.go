package domain

import "context"

// OrderStore is the Data Store surface for orders. Every mutating call has
// committed by the time it returns without error.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	CreateOrder(ctx context.Context, in NewOrder) (Order, error)
	UpdateOrder(ctx context.Context, id int64, upd OrderUpdate) (Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type ChatStore interface {
	CreateChatMessage(ctx context.Context, in NewChatMessage) (ChatMessage, error)
	ListChatMessages(ctx context.Context, orderID int64) ([]ChatMessage, error)
	MarkChatRead(ctx context.Context, orderID int64) (int64, error)
}

type MenuStore interface {
	CreateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (MenuItem, error)
	ListMenuItems(ctx context.Context, f MenuItemFilter) ([]MenuItem, error)
	UpdateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error)
	DeleteMenuItem(ctx context.Context, id int64) error
}

type TableStore interface {
	CreateTable(ctx context.Context, t Table) (Table, error)
	GetTable(ctx context.Context, id int64) (Table, error)
	ListTables(ctx context.Context) ([]Table, error)
	UpdateTable(ctx context.Context, t Table) (Table, error)
	DeleteTable(ctx context.Context, id int64) error
	ToggleOccupation(ctx context.Context, id int64) (Table, error)
}

type BrokenItemStore interface {
	CreateBrokenItem(ctx context.Context, b BrokenItem) (BrokenItem, error)
	ListBrokenItems(ctx context.Context, resolved *bool) ([]BrokenItem, error)
	ResolveBrokenItem(ctx context.Context, id int64) (BrokenItem, error)
}

// DataStore is everything the HTTP gateway needs.
type DataStore interface {
	OrderStore
	ChatStore
	MenuStore
	TableStore
	BrokenItemStore
}
