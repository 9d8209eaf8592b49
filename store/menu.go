package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"orderhub/domain"
)

func (s *Store) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)",
		c.Name, c.Description, stamp(c.CreatedAt))
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to insert category '%s': %w", c.Name, translate(err, "name"))
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, created_at FROM categories ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	cats := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.CreatedAt = fromStamp(created)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	var created int64
	err := s.db.QueryRowContext(ctx, "SELECT id, name, description, created_at FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Description, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, domain.ErrNotFound
		}
		return domain.Category{}, fmt.Errorf("error querying category %d: %w", id, err)
	}
	c.CreatedAt = fromStamp(created)
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE categories SET name = ?, description = ? WHERE id = ?", c.Name, c.Description, c.ID)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to update category %d: %w", c.ID, translate(err, "name"))
	}
	if err := requireAffected(res); err != nil {
		return domain.Category{}, err
	}
	return s.GetCategory(ctx, c.ID)
}

// DeleteCategory removes a category with its menu items. It fails while any
// of those items is part of an order.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, translate(err, "id"))
	}
	return requireAffected(res)
}

const menuItemQuery = `
	SELECT m.id, m.name, m.description, m.price_cents, m.category_id, c.name, m.is_available, m.created_at, m.updated_at
	FROM menu_items m JOIN categories c ON c.id = m.category_id`

func scanMenuItem(row interface{ Scan(...any) error }) (domain.MenuItem, error) {
	var m domain.MenuItem
	var created, updated int64
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.PriceCents, &m.CategoryID, &m.CategoryName, &m.IsAvailable, &created, &updated); err != nil {
		return domain.MenuItem{}, err
	}
	m.CreatedAt = fromStamp(created)
	m.UpdatedAt = fromStamp(updated)
	return m, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error) {
	now := stamp(s.now())
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO menu_items (name, description, price_cents, category_id, is_available, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.Name, m.Description, m.PriceCents, m.CategoryID, m.IsAvailable, now, now)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("failed to insert menu item '%s': %w", m.Name, translate(err, "category_id"))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.MenuItem{}, err
	}
	return s.GetMenuItem(ctx, id)
}

func (s *Store) GetMenuItem(ctx context.Context, id int64) (domain.MenuItem, error) {
	m, err := scanMenuItem(s.db.QueryRowContext(ctx, menuItemQuery+" WHERE m.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MenuItem{}, domain.ErrNotFound
		}
		return domain.MenuItem{}, fmt.Errorf("error querying menu item %d: %w", id, err)
	}
	return m, nil
}

func (s *Store) ListMenuItems(ctx context.Context, f domain.MenuItemFilter) ([]domain.MenuItem, error) {
	var where []string
	var args []any
	if f.CategoryID != 0 {
		where = append(where, "m.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.AvailableOnly {
		where = append(where, "m.is_available = 1")
	}
	query := menuItemQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.name, m.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	items := []domain.MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *Store) UpdateMenuItem(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE menu_items SET name = ?, description = ?, price_cents = ?, category_id = ?, is_available = ?, updated_at = ? WHERE id = ?",
		m.Name, m.Description, m.PriceCents, m.CategoryID, m.IsAvailable, stamp(s.now()), m.ID)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("failed to update menu item %d: %w", m.ID, translate(err, "category_id"))
	}
	if err := requireAffected(res); err != nil {
		return domain.MenuItem{}, err
	}
	return s.GetMenuItem(ctx, m.ID)
}

func (s *Store) DeleteMenuItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM menu_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete menu item %d: %w", id, translate(err, "id"))
	}
	return requireAffected(res)
}
