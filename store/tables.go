package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderhub/domain"
)

func (s *Store) CreateTable(ctx context.Context, t domain.Table) (domain.Table, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO dining_tables (table_number, is_occupied) VALUES (?, ?)", t.TableNumber, t.IsOccupied)
	if err != nil {
		return domain.Table{}, fmt.Errorf("failed to insert table %d: %w", t.TableNumber, translate(err, "table_number"))
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return domain.Table{}, err
	}
	return t, nil
}

func (s *Store) GetTable(ctx context.Context, id int64) (domain.Table, error) {
	var t domain.Table
	err := s.db.QueryRowContext(ctx, "SELECT id, table_number, is_occupied FROM dining_tables WHERE id = ?", id).
		Scan(&t.ID, &t.TableNumber, &t.IsOccupied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Table{}, domain.ErrNotFound
		}
		return domain.Table{}, fmt.Errorf("error querying table %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, table_number, is_occupied FROM dining_tables ORDER BY table_number")
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	tables := []domain.Table{}
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.TableNumber, &t.IsOccupied); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *Store) ToggleOccupation(ctx context.Context, id int64) (domain.Table, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE dining_tables SET is_occupied = NOT is_occupied WHERE id = ?", id)
	if err != nil {
		return domain.Table{}, fmt.Errorf("failed to toggle table %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Table{}, err
	}
	return s.GetTable(ctx, id)
}

func (s *Store) UpdateTable(ctx context.Context, t domain.Table) (domain.Table, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE dining_tables SET table_number = ?, is_occupied = ? WHERE id = ?", t.TableNumber, t.IsOccupied, t.ID)
	if err != nil {
		return domain.Table{}, fmt.Errorf("failed to update table %d: %w", t.ID, translate(err, "table_number"))
	}
	if err := requireAffected(res); err != nil {
		return domain.Table{}, err
	}
	return s.GetTable(ctx, t.ID)
}

// DeleteTable fails while orders still reference the table.
func (s *Store) DeleteTable(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dining_tables WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete table %d: %w", id, translate(err, "id"))
	}
	return requireAffected(res)
}
