package borrows

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// memLedger は Ledger のインメモリ実装。mu が MySQL の行ロックに相当し、
// 本物のストアと同じ純粋関数 (checkBorrow / planTransition / checkRelease)
// で遷移を決める。
type memLedger struct {
	mu       sync.Mutex
	items    map[int64]*itemStock
	logs     map[int64]*BorrowLog
	nextID   int64
	sweepErr error // ExecSweep を失敗させたいテスト用
}

func newMemLedger(items ...itemStock) *memLedger {
	m := &memLedger{
		items: make(map[int64]*itemStock),
		logs:  make(map[int64]*BorrowLog),
	}
	for i := range items {
		it := items[i]
		m.items[it.ID] = &it
	}
	return m
}

func (m *memLedger) ExecCreateBorrow(_ context.Context, l *BorrowLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[l.ItemID]
	if !ok {
		return ErrNotFound("item not found")
	}
	if err := checkBorrow(*it, l.QuantityBorrowed); err != nil {
		return err
	}
	it.Available -= l.QuantityBorrowed

	m.nextID++
	l.ID = m.nextID
	l.CreatedAt = l.BorrowDate
	cp := *l
	m.logs[l.ID] = &cp
	return nil
}

func (m *memLedger) ExecUpdate(_ context.Context, id int64, spec UpdateSpec, now time.Time) (*BorrowLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[id]
	if !ok {
		return nil, ErrNotFound("borrow log not found")
	}

	if spec.Status != nil {
		eff, err := planTransition(l.Status, l.ActualReturnDate.Valid, *spec.Status, l.QuantityBorrowed)
		if err != nil {
			return nil, err
		}
		if eff.releaseQty > 0 {
			it, ok := m.items[l.ItemID]
			if !ok {
				return nil, ErrNotFound("item not found")
			}
			if err := checkRelease(*it, eff.releaseQty); err != nil {
				return nil, err
			}
			it.Available += eff.releaseQty
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

	cp := *l
	return &cp, nil
}

func (m *memLedger) ExecDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[id]
	if !ok {
		return ErrNotFound("borrow log not found")
	}
	if l.Status.Outstanding() {
		it, ok := m.items[l.ItemID]
		if !ok {
			return ErrNotFound("item not found")
		}
		if err := checkRelease(*it, l.QuantityBorrowed); err != nil {
			return err
		}
		it.Available += l.QuantityBorrowed
	}
	delete(m.logs, id)
	return nil
}

func (m *memLedger) ExecSweep(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweepErr != nil {
		return 0, m.sweepErr
	}

	var n int64
	for _, l := range m.logs {
		if l.Status == StatusBorrowed && l.ExpectedReturnDate.Valid && l.ExpectedReturnDate.Time.Before(now) {
			l.Status = StatusOverdue
			l.ActualReturnDate = sql.NullTime{}
			n++
		}
	}
	return n, nil
}

func (m *memLedger) GetBorrowByID(_ context.Context, id int64) (*BorrowDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[id]
	if !ok {
		return nil, ErrNotFound("borrow log not found")
	}
	cp := *l
	return &BorrowDetail{BorrowLog: cp}, nil
}

func (m *memLedger) ListBorrows(_ context.Context, f Filter, p Page, now time.Time) ([]BorrowDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []BorrowDetail
	for _, l := range m.logs {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.ItemID != nil && l.ItemID != *f.ItemID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.OverdueOnly {
			if l.Status != StatusBorrowed || !l.ExpectedReturnDate.Valid || !l.ExpectedReturnDate.Time.Before(now) {
				continue
			}
		}
		cp := *l
		out = append(out, BorrowDetail{BorrowLog: cp})
	}
	return out, nil
}

func (m *memLedger) OutstandingByUser(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, l := range m.logs {
		if l.UserID == userID && l.Status.Outstanding() {
			n++
		}
	}
	return n, nil
}

// available returns the current available_quantity of an item.
func (m *memLedger) available(itemID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Available
}

// conservationHolds checks available + Σ outstanding quantity == quantity.
func (m *memLedger) conservationHolds(itemID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := m.items[itemID]
	outstanding := 0
	for _, l := range m.logs {
		if l.ItemID == itemID && l.Status.Outstanding() {
			outstanding += l.QuantityBorrowed
		}
	}
	return it.Available+outstanding == it.Quantity
}
