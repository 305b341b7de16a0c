package borrows

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	platformdb "CLIS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// BorrowDetail は一覧・詳細表示用に items / users を JOIN した行
type BorrowDetail struct {
	BorrowLog
	ItemName     string
	BorrowerName string
	AdminName    string
}

// lockItemRow locks the item row for the duration of the transaction.
// reserve/release は必ずこのロックの内側で行う。
func (s *Store) lockItemRow(ctx context.Context, tx platformdb.DBTX, itemID int64) (itemStock, error) {
	const q = `
SELECT id, quantity, available_quantity, is_borrowable
FROM items WHERE id = ? FOR UPDATE`
	var it itemStock
	var borrowableInt int
	err := tx.QueryRowContext(ctx, q, itemID).Scan(&it.ID, &it.Quantity, &it.Available, &borrowableInt)
	if errors.Is(err, sql.ErrNoRows) {
		return itemStock{}, ErrNotFound("item not found")
	}
	if err != nil {
		return itemStock{}, err
	}
	it.IsBorrowable = borrowableInt != 0
	return it, nil
}

func (s *Store) lockBorrowRow(ctx context.Context, tx platformdb.DBTX, id int64) (*BorrowLog, error) {
	const q = `
SELECT id, borrow_ulid, item_id, user_id, admin_id, quantity_borrowed,
       borrow_date, expected_return_date, actual_return_date, status, notes, created_at
FROM borrow_logs WHERE id = ? FOR UPDATE`
	var l BorrowLog
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&l.ID, &l.BorrowULID, &l.ItemID, &l.UserID, &l.AdminID, &l.QuantityBorrowed,
		&l.BorrowDate, &l.ExpectedReturnDate, &l.ActualReturnDate, &l.Status, &l.Notes, &l.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("borrow log not found")
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) reserveStock(ctx context.Context, tx platformdb.DBTX, itemID int64, n int) error {
	const q = `UPDATE items SET available_quantity = available_quantity - ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, n, itemID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal("failed to update items.available_quantity")
	}
	return nil
}

func (s *Store) releaseStock(ctx context.Context, tx platformdb.DBTX, it itemStock, n int) error {
	if err := checkRelease(it, n); err != nil {
		// ここに来たら二重解放のバグ。握り潰さず運用者に見せる。
		log.Printf("[WARN] conservation invariant violated: item=%d available=%d total=%d release=%d",
			it.ID, it.Available, it.Quantity, n)
		return err
	}
	const q = `UPDATE items SET available_quantity = available_quantity + ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, n, it.ID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return ErrInternal("failed to update items.available_quantity")
	}
	return nil
}

// ---- Transactional Methods ----

// ExecCreateBorrow: 物品行ロック → 在庫検証 → 予約 → 台帳INSERT を1トランザクションで行う
func (s *Store) ExecCreateBorrow(ctx context.Context, m *BorrowLog) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		it, err := s.lockItemRow(ctx, tx, m.ItemID)
		if err != nil {
			return err
		}
		if err := checkBorrow(it, m.QuantityBorrowed); err != nil {
			return err
		}
		if err := s.reserveStock(ctx, tx, it.ID, m.QuantityBorrowed); err != nil {
			return err
		}

		const q = `
INSERT INTO borrow_logs
  (borrow_ulid, item_id, user_id, admin_id, quantity_borrowed,
   borrow_date, expected_return_date, status, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			m.BorrowULID, m.ItemID, m.UserID, m.AdminID, m.QuantityBorrowed,
			m.BorrowDate, m.ExpectedReturnDate, string(m.Status), m.Notes, m.BorrowDate,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		m.ID = id
		m.CreatedAt = m.BorrowDate
		return nil
	})
}

// ExecUpdate: 台帳行ロック → 遷移計画 → （必要なら）在庫解放 → 台帳UPDATE。
// spec.Status が nil ならフィールド更新のみで在庫には触れない。
func (s *Store) ExecUpdate(ctx context.Context, id int64, spec UpdateSpec, now time.Time) (*BorrowLog, error) {
	var out *BorrowLog
	err := platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		l, err := s.lockBorrowRow(ctx, tx, id)
		if err != nil {
			return err
		}

		if spec.Status != nil {
			eff, err := planTransition(l.Status, l.ActualReturnDate.Valid, *spec.Status, l.QuantityBorrowed)
			if err != nil {
				return err
			}
			if eff.releaseQty > 0 {
				it, err := s.lockItemRow(ctx, tx, l.ItemID)
				if err != nil {
					return err
				}
				if err := s.releaseStock(ctx, tx, it, eff.releaseQty); err != nil {
					return err
				}
			}
			l.Status = *spec.Status
			if eff.setReturnDate {
				l.ActualReturnDate = sql.NullTime{Time: now, Valid: true}
			}
			if eff.clearReturnDate {
				l.ActualReturnDate = sql.NullTime{}
			}
		}
		if spec.Notes != nil {
			l.Notes = sql.NullString{String: *spec.Notes, Valid: *spec.Notes != ""}
		}
		if spec.ExpectedReturnDate != nil {
			l.ExpectedReturnDate = sql.NullTime{Time: *spec.ExpectedReturnDate, Valid: true}
		}

		const q = `
UPDATE borrow_logs
SET status = ?, actual_return_date = ?, expected_return_date = ?, notes = ?
WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q,
			string(l.Status), l.ActualReturnDate, l.ExpectedReturnDate, l.Notes, l.ID,
		); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

// ExecDelete: 未返却分の在庫を解放してから行を消す。返却済みは在庫に触れない。
func (s *Store) ExecDelete(ctx context.Context, id int64) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		l, err := s.lockBorrowRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if l.Status.Outstanding() {
			it, err := s.lockItemRow(ctx, tx, l.ItemID)
			if err != nil {
				return err
			}
			if err := s.releaseStock(ctx, tx, it, l.QuantityBorrowed); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM borrow_logs WHERE id = ?`, l.ID)
		return err
	})
}

// ExecSweep transitions every overdue BORROWED log in one statement.
// 同時に走る返却は status='BORROWED' の述語で自然に除外される。
func (s *Store) ExecSweep(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE borrow_logs
SET status = ?, actual_return_date = NULL
WHERE status = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?`
	res, err := s.db.ExecContext(ctx, q, string(StatusOverdue), string(StatusBorrowed), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- Queries ----

const detailSelect = `
SELECT
  l.id, l.borrow_ulid, l.item_id, l.user_id, l.admin_id, l.quantity_borrowed,
  l.borrow_date, l.expected_return_date, l.actual_return_date, l.status, l.notes, l.created_at,
  i.name, u.full_name, a.full_name
FROM borrow_logs l
JOIN items i ON i.id = l.item_id
JOIN users u ON u.id = l.user_id
JOIN users a ON a.id = l.admin_id`

func scanDetail(row interface{ Scan(...any) error }) (*BorrowDetail, error) {
	var d BorrowDetail
	err := row.Scan(
		&d.ID, &d.BorrowULID, &d.ItemID, &d.UserID, &d.AdminID, &d.QuantityBorrowed,
		&d.BorrowDate, &d.ExpectedReturnDate, &d.ActualReturnDate, &d.Status, &d.Notes, &d.CreatedAt,
		&d.ItemName, &d.BorrowerName, &d.AdminName,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetBorrowByID(ctx context.Context, id int64) (*BorrowDetail, error) {
	d, err := scanDetail(s.db.QueryRowContext(ctx, detailSelect+` WHERE l.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound("borrow log not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListBorrows(ctx context.Context, f Filter, p Page, now time.Time) ([]BorrowDetail, error) {
	sb := strings.Builder{}
	sb.WriteString(detailSelect)
	sb.WriteString(` WHERE 1=1`)

	args := []any{}
	if f.UserID != nil {
		sb.WriteString(` AND l.user_id = ?`)
		args = append(args, *f.UserID)
	}
	if f.ItemID != nil {
		sb.WriteString(` AND l.item_id = ?`)
		args = append(args, *f.ItemID)
	}
	if f.Status != nil {
		sb.WriteString(` AND l.status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.OverdueOnly {
		sb.WriteString(` AND l.status = ? AND l.expected_return_date IS NOT NULL AND l.expected_return_date < ?`)
		args = append(args, string(StatusBorrowed), now)
	}

	sb.WriteString(` ORDER BY l.borrow_date DESC`)
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	sb.WriteString(` LIMIT ? OFFSET ?`)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BorrowDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// OutstandingByUser counts BORROWED/OVERDUE logs referencing the user as
// borrower. users 削除時のガードに使う。
func (s *Store) OutstandingByUser(ctx context.Context, userID int64) (int64, error) {
	const q = `
SELECT COUNT(*) FROM borrow_logs
WHERE user_id = ? AND status IN (?, ?)`
	var n int64
	err := s.db.QueryRowContext(ctx, q, userID, string(StatusBorrowed), string(StatusOverdue)).Scan(&n)
	return n, err
}
