package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"CLIS-backend/internal/platform/db"

	"github.com/go-sql-driver/mysql"
)

type Store struct {
	db *sql.DB
}

func NewStore(d *sql.DB) *Store { return &Store{db: d} }

const mysqlErrDuplicate = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicate
}

// ---- Transactional Methods ----

func (s *Store) ExecCreate(ctx context.Context, m *Category) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)`,
			m.Name, m.Description, m.CreatedAt,
		)
		if err != nil {
			if isDuplicate(err) {
				return ErrConflict(fmt.Sprintf("category %q already exists", m.Name))
			}
			return fmt.Errorf("insert category: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("category id: %w", err)
		}
		m.ID = id
		return nil
	})
}

func (s *Store) ExecUpdate(ctx context.Context, id int64, name *string, description *string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var exists int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE id = ? FOR UPDATE`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("category not found")
		}
		if err != nil {
			return fmt.Errorf("lock category %d: %w", id, err)
		}

		if name != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, *name, id); err != nil {
				if isDuplicate(err) {
					return ErrConflict(fmt.Sprintf("category %q already exists", *name))
				}
				return fmt.Errorf("update category %d: %w", id, err)
			}
		}
		if description != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE categories SET description = ? WHERE id = ?`, *description, id); err != nil {
				return fmt.Errorf("update category %d: %w", id, err)
			}
		}
		return nil
	})
}

// ExecDelete は所属物品ごと消す（items 側 FK が ON DELETE CASCADE）。
func (s *Store) ExecDelete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound("category not found")
		}
		return nil
	})
}

// ---- Query Methods ----

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*CategoryWithCount, error) {
	var m CategoryWithCount
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(i.id)
		FROM categories c
		LEFT JOIN items i ON i.category_id = c.id
		WHERE c.id = ?
		GROUP BY c.id`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.ItemsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("category not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*CategoryWithCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(i.id)
		FROM categories c
		LEFT JOIN items i ON i.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*CategoryWithCount
	for rows.Next() {
		var m CategoryWithCount
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.ItemsCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
