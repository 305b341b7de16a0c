package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Store struct {
	db *sql.DB
}

func NewStore(d *sql.DB) *Store { return &Store{db: d} }

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("dashboard count: %w", err)
	}
	return n, nil
}

// CollectStats は集計を 1 つずつ数える。ダッシュボードは参照専用なので
// トランザクションは張らない。
func (s *Store) CollectStats(ctx context.Context, scopeUserID *int64, now time.Time) (*Stats, error) {
	var st Stats
	var err error

	if st.TotalItems, err = s.count(ctx, `SELECT COUNT(*) FROM items`); err != nil {
		return nil, err
	}
	if st.TotalCategories, err = s.count(ctx, `SELECT COUNT(*) FROM categories`); err != nil {
		return nil, err
	}
	if st.TotalUsers, err = s.count(ctx, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, err
	}
	if st.LowStockItems, err = s.count(ctx,
		`SELECT COUNT(*) FROM items WHERE available_quantity <= min_stock_level`); err != nil {
		return nil, err
	}
	if st.ExpiredItems, err = s.count(ctx,
		`SELECT COUNT(*) FROM items WHERE expiry_date IS NOT NULL AND expiry_date < ?`, now); err != nil {
		return nil, err
	}
	if st.ItemsForDisposal, err = s.count(ctx,
		`SELECT COUNT(*) FROM items WHERE item_condition = 'for_disposal'`); err != nil {
		return nil, err
	}

	// 貸出系は viewer なら自分の分だけに絞る。
	borrowedQ := `SELECT COUNT(*) FROM borrow_logs WHERE status IN ('BORROWED', 'OVERDUE')`
	overdueQ := `SELECT COUNT(*) FROM borrow_logs
		WHERE status = 'OVERDUE'
		   OR (status = 'BORROWED' AND expected_return_date IS NOT NULL AND expected_return_date < ?)`
	if scopeUserID != nil {
		if st.TotalBorrowedItems, err = s.count(ctx, borrowedQ+` AND user_id = ?`, *scopeUserID); err != nil {
			return nil, err
		}
		overdueScoped := `SELECT COUNT(*) FROM borrow_logs
			WHERE user_id = ?
			  AND (status = 'OVERDUE'
			       OR (status = 'BORROWED' AND expected_return_date IS NOT NULL AND expected_return_date < ?))`
		if st.OverdueBorrows, err = s.count(ctx, overdueScoped, *scopeUserID, now); err != nil {
			return nil, err
		}
		return &st, nil
	}

	if st.TotalBorrowedItems, err = s.count(ctx, borrowedQ); err != nil {
		return nil, err
	}
	if st.OverdueBorrows, err = s.count(ctx, overdueQ, now); err != nil {
		return nil, err
	}
	return &st, nil
}
