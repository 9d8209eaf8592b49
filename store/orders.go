package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"orderhub/domain"
)

const orderColumns = "id, table_id, status, total_cents, COALESCE(tracking_code, ''), user_agent, created_at, updated_at"

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	var created, updated int64
	if err := row.Scan(&o.ID, &o.TableID, &o.Status, &o.TotalCents, &o.TrackingCode, &o.UserAgent, &created, &updated); err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = fromStamp(created)
	o.UpdatedAt = fromStamp(updated)
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.getOrder(ctx, s.db, id)
}

func (s *Store) getOrder(ctx context.Context, q querier, id int64) (domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("error querying order %d: %w", id, err)
	}
	orders := []domain.Order{o}
	if err := loadItems(ctx, q, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// CreateOrder inserts the order and its items in one transaction. The total
// is computed from the menu prices at the time of ordering.
func (s *Store) CreateOrder(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, domain.Invalid("items", "an order needs at least one item")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tableExists(ctx, tx, in.TableID); err != nil {
			return err
		}

		prices := make([]int64, len(in.Items))
		var total int64
		for i, item := range in.Items {
			var price int64
			var available bool
			err := tx.QueryRowContext(ctx, "SELECT price_cents, is_available FROM menu_items WHERE id = ?", item.MenuItemID).Scan(&price, &available)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Invalid("items", fmt.Sprintf("menu item %d does not exist", item.MenuItemID))
			}
			if err != nil {
				return fmt.Errorf("error querying menu item %d: %w", item.MenuItemID, err)
			}
			if !available {
				return domain.Invalid("items", fmt.Sprintf("menu item %d is not available", item.MenuItemID))
			}
			prices[i] = price
			total += price * int64(item.Quantity)
		}

		now := stamp(s.now())
		res, err := tx.ExecContext(ctx,
			"INSERT INTO orders (table_id, status, total_cents, tracking_code, user_agent, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			in.TableID, domain.StatusPending, total, ulid.Make().String(), in.UserAgent, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", translate(err, "order"))
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		for i, item := range in.Items {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO order_items (order_id, menu_item_id, quantity, notes, unit_price_cents) VALUES (?, ?, ?, ?, ?)",
				id, item.MenuItemID, item.Quantity, item.Notes, prices[i])
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", translate(err, "items"))
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

// UpdateOrder applies the non-nil fields of upd and bumps updated_at.
func (s *Store) UpdateOrder(ctx context.Context, id int64, upd domain.OrderUpdate) (domain.Order, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Order{}, domain.Invalid("status", fmt.Sprintf("invalid status %q", *upd.Status))
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if upd.TableID != nil {
			if err := tableExists(ctx, tx, *upd.TableID); err != nil {
				return err
			}
		}
		var status *string
		if upd.Status != nil {
			v := string(*upd.Status)
			status = &v
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE orders SET status = COALESCE(?, status), table_id = COALESCE(?, table_id), updated_at = ? WHERE id = ?",
			status, upd.TableID, stamp(s.now()), id)
		if err != nil {
			return fmt.Errorf("failed to update order %d: %w", id, translate(err, "order"))
		}
		return requireAffected(res)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	var where []string
	var args []any
	if f.TableID != 0 {
		where = append(where, "table_id = ?")
		args = append(args, f.TableID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.Date.IsZero() {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "created_at >= ? AND created_at < ?")
		args = append(args, stamp(day), stamp(day.AddDate(0, 0, 1)))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over orders: %w", err)
	}
	rows.Close()

	if err := loadItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	return requireAffected(res)
}

// loadItems fills in the items of every order in place.
func loadItems(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[int64]int, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i := range orders {
		orders[i].Items = []domain.OrderItem{}
		index[orders[i].ID] = i
		placeholders[i] = "?"
		args[i] = orders[i].ID
	}

	rows, err := q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, COALESCE(m.name, ''), oi.quantity, oi.notes, oi.unit_price_cents
		FROM order_items oi LEFT JOIN menu_items m ON m.id = oi.menu_item_id
		WHERE oi.order_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY oi.id`, args...)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		var orderID int64
		if err := rows.Scan(&it.ID, &orderID, &it.MenuItemID, &it.MenuItemName, &it.Quantity, &it.Notes, &it.UnitPriceCents); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		it.SubtotalCents = it.UnitPriceCents * int64(it.Quantity)
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func tableExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM dining_tables WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invalid("table_id", fmt.Sprintf("table %d does not exist", id))
	}
	if err != nil {
		return fmt.Errorf("error querying table %d: %w", id, err)
	}
	return nil
}
