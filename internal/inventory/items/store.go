package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CLIS-backend/internal/platform/db"

	"github.com/go-sql-driver/mysql"
)

type Store struct {
	db *sql.DB
}

func NewStore(d *sql.DB) *Store { return &Store{db: d} }

// ItemDetail は category 名を JOIN した一覧・詳細用の行。
type ItemDetail struct {
	Item
	CategoryName sql.NullString
}

const mysqlErrFKViolation = 1452

func isFKViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrFKViolation
}

// updateSpec は ExecUpdate で適用する差分。nil のフィールドは変更しない。
type updateSpec struct {
	Name            *string
	Description     *string
	CategoryID      *int64
	Quantity        *int
	Unit            *string
	StorageLocation *string
	Condition       *string
	MinStockLevel   *int
	IsBorrowable    *bool
	ImageURL        *string
	ExpiryDate      *time.Time
}

// ---- Transactional Methods ----

func (s *Store) ExecCreate(ctx context.Context, m *Item) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO items
				(name, name_folded, description, category_id, quantity, available_quantity,
				 unit, storage_location, item_condition, min_stock_level, is_borrowable,
				 image_url, expiry_date, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Name, m.NameFolded, m.Description, m.CategoryID, m.Quantity, m.AvailableQuantity,
			m.Unit, m.StorageLocation, m.Condition, m.MinStockLevel, m.IsBorrowable,
			m.ImageURL, m.ExpiryDate, m.CreatedBy, m.CreatedAt,
		)
		if err != nil {
			if isFKViolation(err) {
				return ErrInvalid("category does not exist")
			}
			return fmt.Errorf("insert item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		m.ID = id
		return nil
	})
}

// ExecUpdate は行ロック下で差分を適用する。quantity の変更は
// 符号付き差分を available_quantity にも適用し、貸出中数量を
// 下回る縮小(available が負になる更新)は拒否する。
func (s *Store) ExecUpdate(ctx context.Context, id int64, spec updateSpec, now time.Time) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var curQty, curAvail int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity, available_quantity FROM items WHERE id = ? FOR UPDATE`, id,
		).Scan(&curQty, &curAvail)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("item not found")
		}
		if err != nil {
			return fmt.Errorf("lock item %d: %w", id, err)
		}

		var sets []string
		var args []any
		add := func(col string, v any) {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}

		if spec.Name != nil {
			add("name", *spec.Name)
			add("name_folded", foldString(*spec.Name))
		}
		if spec.Description != nil {
			add("description", *spec.Description)
		}
		if spec.CategoryID != nil {
			add("category_id", *spec.CategoryID)
		}
		if spec.Quantity != nil {
			newAvail, err := adjustAvailable(curQty, *spec.Quantity, curAvail)
			if err != nil {
				return err
			}
			add("quantity", *spec.Quantity)
			add("available_quantity", newAvail)
		}
		if spec.Unit != nil {
			add("unit", *spec.Unit)
		}
		if spec.StorageLocation != nil {
			add("storage_location", *spec.StorageLocation)
		}
		if spec.Condition != nil {
			add("item_condition", *spec.Condition)
		}
		if spec.MinStockLevel != nil {
			add("min_stock_level", *spec.MinStockLevel)
		}
		if spec.IsBorrowable != nil {
			add("is_borrowable", *spec.IsBorrowable)
		}
		if spec.ImageURL != nil {
			add("image_url", *spec.ImageURL)
		}
		if spec.ExpiryDate != nil {
			add("expiry_date", *spec.ExpiryDate)
		}
		if len(sets) == 0 {
			return nil
		}
		add("updated_at", now)

		q := "UPDATE items SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if isFKViolation(err) {
				return ErrInvalid("category does not exist")
			}
			return fmt.Errorf("update item %d: %w", id, err)
		}
		return nil
	})
}

func (s *Store) ExecDelete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete item %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete item %d: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound("item not found")
		}
		return nil
	})
}

// ---- Query Methods ----

const detailSelect = `
	SELECT i.id, i.name, i.name_folded, i.description, i.category_id, i.quantity,
	       i.available_quantity, i.unit, i.storage_location, i.item_condition,
	       i.min_stock_level, i.is_borrowable, i.image_url, i.expiry_date,
	       i.created_by, i.created_at, i.updated_at, c.name
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id`

func scanDetail(row interface{ Scan(dest ...any) error }) (*ItemDetail, error) {
	var d ItemDetail
	err := row.Scan(
		&d.ID, &d.Name, &d.NameFolded, &d.Description, &d.CategoryID, &d.Quantity,
		&d.AvailableQuantity, &d.Unit, &d.StorageLocation, &d.Condition,
		&d.MinStockLevel, &d.IsBorrowable, &d.ImageURL, &d.ExpiryDate,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.CategoryName,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetItemByID(ctx context.Context, id int64) (*ItemDetail, error) {
	row := s.db.QueryRowContext(ctx, detailSelect+` WHERE i.id = ?`, id)
	d, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return d, nil
}

func (s *Store) ListItems(ctx context.Context, f Filter, p Page) ([]*ItemDetail, error) {
	var b strings.Builder
	b.WriteString(detailSelect)
	var conds []string
	var args []any

	if f.Search != "" {
		folded := "%" + foldString(f.Search) + "%"
		conds = append(conds, "(i.name_folded LIKE ? OR i.description LIKE ?)")
		args = append(args, folded, "%"+f.Search+"%")
	}
	if f.CategoryID != nil {
		conds = append(conds, "i.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.StorageLocation != nil {
		conds = append(conds, "i.storage_location = ?")
		args = append(args, *f.StorageLocation)
	}
	if f.Condition != nil {
		conds = append(conds, "i.item_condition = ?")
		args = append(args, *f.Condition)
	}
	if f.LowStock {
		conds = append(conds, "i.available_quantity <= i.min_stock_level")
	}
	if f.BorrowableOnly {
		conds = append(conds, "i.is_borrowable = TRUE")
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY i.name ASC LIMIT ? OFFSET ?")
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []*ItemDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
