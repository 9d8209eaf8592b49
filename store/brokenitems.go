package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderhub/domain"
)

const brokenItemColumns = "id, item_name, description, reported_by, reported_at, resolved, resolved_at"

func scanBrokenItem(row interface{ Scan(...any) error }) (domain.BrokenItem, error) {
	var b domain.BrokenItem
	var reported int64
	var resolvedAt sql.NullInt64
	if err := row.Scan(&b.ID, &b.ItemName, &b.Description, &b.ReportedBy, &reported, &b.Resolved, &resolvedAt); err != nil {
		return domain.BrokenItem{}, err
	}
	b.ReportedAt = fromStamp(reported)
	if resolvedAt.Valid {
		t := fromStamp(resolvedAt.Int64)
		b.ResolvedAt = &t
	}
	return b, nil
}

func (s *Store) CreateBrokenItem(ctx context.Context, b domain.BrokenItem) (domain.BrokenItem, error) {
	b.ReportedAt = s.now()
	b.Resolved = false
	b.ResolvedAt = nil
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO broken_items (item_name, description, reported_by, reported_at) VALUES (?, ?, ?, ?)",
		b.ItemName, b.Description, b.ReportedBy, stamp(b.ReportedAt))
	if err != nil {
		return domain.BrokenItem{}, fmt.Errorf("failed to insert broken item: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return domain.BrokenItem{}, err
	}
	return b, nil
}

// ListBrokenItems lists reports newest first; a non-nil resolved narrows by state.
func (s *Store) ListBrokenItems(ctx context.Context, resolved *bool) ([]domain.BrokenItem, error) {
	query := "SELECT " + brokenItemColumns + " FROM broken_items"
	var args []any
	if resolved != nil {
		query += " WHERE resolved = ?"
		args = append(args, *resolved)
	}
	query += " ORDER BY reported_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query broken items: %w", err)
	}
	defer rows.Close()

	items := []domain.BrokenItem{}
	for rows.Next() {
		b, err := scanBrokenItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broken item: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (s *Store) ResolveBrokenItem(ctx context.Context, id int64) (domain.BrokenItem, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE broken_items SET resolved = 1, resolved_at = ? WHERE id = ?", stamp(s.now()), id)
	if err != nil {
		return domain.BrokenItem{}, fmt.Errorf("failed to resolve broken item %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return domain.BrokenItem{}, err
	}
	b, err := scanBrokenItem(s.db.QueryRowContext(ctx, "SELECT "+brokenItemColumns+" FROM broken_items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BrokenItem{}, domain.ErrNotFound
	}
	return b, err
}
