package borrows

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

// Ledger は借用台帳の永続化層。本番実装は *Store (MySQL)。
// reserve/release とステータス遷移は各メソッド内で1トランザクションに閉じること。
type Ledger interface {
	ExecCreateBorrow(ctx context.Context, m *BorrowLog) error
	ExecUpdate(ctx context.Context, id int64, spec UpdateSpec, now time.Time) (*BorrowLog, error)
	ExecDelete(ctx context.Context, id int64) error
	ExecSweep(ctx context.Context, now time.Time) (int64, error)
	GetBorrowByID(ctx context.Context, id int64) (*BorrowDetail, error)
	ListBorrows(ctx context.Context, f Filter, p Page, now time.Time) ([]BorrowDetail, error)
	OutstandingByUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	store Ledger
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{
		store: NewStore(db),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// 期日は RFC3339 か "2006-01-02" のどちらでも受ける
func parseReturnDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalid("invalid expected_return_date, expected RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}

// CreateBorrow authorizes a loan: it reserves stock on the item and inserts
// the ledger entry in one transaction. approverID is the authenticated
// admin; req.AdminID overrides it when an admin records a loan on behalf of
// another approver.
func (s *Service) CreateBorrow(ctx context.Context, approverID int64, req CreateBorrowRequest) (*BorrowResponse, error) {
	if req.QuantityBorrowed <= 0 {
		return nil, ErrInvalidQuantity("quantity_borrowed must be > 0")
	}
	if req.ItemID <= 0 {
		return nil, ErrInvalid("item_id is required")
	}
	if req.UserID <= 0 {
		return nil, ErrInvalid("user_id is required")
	}

	adminID := approverID
	if req.AdminID > 0 {
		adminID = req.AdminID
	}
	if adminID <= 0 {
		return nil, ErrInvalid("admin_id is required")
	}

	now := s.clock.Now()
	m := &BorrowLog{
		BorrowULID:       s.id.NewULID(now),
		ItemID:           req.ItemID,
		UserID:           req.UserID,
		AdminID:          adminID,
		QuantityBorrowed: req.QuantityBorrowed,
		BorrowDate:       now,
		Status:           StatusBorrowed,
	}
	if req.ExpectedReturnDate != nil && *req.ExpectedReturnDate != "" {
		t, err := parseReturnDate(*req.ExpectedReturnDate)
		if err != nil {
			return nil, err
		}
		m.ExpectedReturnDate = sql.NullTime{Time: t, Valid: true}
	}
	if req.Notes != nil && *req.Notes != "" {
		m.Notes = sql.NullString{String: *req.Notes, Valid: true}
	}

	if err := s.store.ExecCreateBorrow(ctx, m); err != nil {
		return nil, err
	}

	resp := buildBorrowResponse(m)
	return &resp, nil
}

// ReturnBorrow moves a BORROWED/OVERDUE log to RETURNED and releases the
// reserved stock. Returning twice fails with ALREADY_RETURNED.
func (s *Service) ReturnBorrow(ctx context.Context, id int64, req ReturnRequest) (*BorrowResponse, error) {
	if id <= 0 {
		return nil, ErrInvalid("borrow id must be > 0")
	}
	to := StatusReturned
	l, err := s.store.ExecUpdate(ctx, id, UpdateSpec{Status: &to, Notes: req.Notes}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	resp := buildBorrowResponse(l)
	return &resp, nil
}

// UpdateBorrow edits notes/expected_return_date and, when a status is
// supplied, runs the same transition rules as the return path.
func (s *Service) UpdateBorrow(ctx context.Context, id int64, req UpdateBorrowRequest) (*BorrowResponse, error) {
	if id <= 0 {
		return nil, ErrInvalid("borrow id must be > 0")
	}

	spec := UpdateSpec{Notes: req.Notes}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		spec.Status = &st
	}
	if req.ExpectedReturnDate != nil && *req.ExpectedReturnDate != "" {
		t, err := parseReturnDate(*req.ExpectedReturnDate)
		if err != nil {
			return nil, err
		}
		spec.ExpectedReturnDate = &t
	}

	l, err := s.store.ExecUpdate(ctx, id, spec, s.clock.Now())
	if err != nil {
		return nil, err
	}
	resp := buildBorrowResponse(l)
	return &resp, nil
}

// DeleteBorrow removes a log; an outstanding one releases its stock first
// so the loaned units are never lost.
func (s *Service) DeleteBorrow(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalid("borrow id must be > 0")
	}
	return s.store.ExecDelete(ctx, id)
}

func (s *Service) GetBorrow(ctx context.Context, id int64) (*BorrowResponse, error) {
	d, err := s.store.GetBorrowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := buildDetailResponse(d)
	return &resp, nil
}

func (s *Service) ListBorrows(ctx context.Context, f Filter, p Page) ([]BorrowResponse, error) {
	ds, err := s.store.ListBorrows(ctx, f, p, s.clock.Now())
	if err != nil {
		return nil, err
	}
	out := make([]BorrowResponse, 0, len(ds))
	for i := range ds {
		out = append(out, buildDetailResponse(&ds[i]))
	}
	return out, nil
}

// RunOverdueSweep transitions every BORROWED log whose expected_return_date
// has passed to OVERDUE and returns the count. Quantities are untouched.
func (s *Service) RunOverdueSweep(ctx context.Context, now time.Time) (int64, error) {
	return s.store.ExecSweep(ctx, now)
}

// Now exposes the service clock (the sweeper and handlers share it).
func (s *Service) Now() time.Time { return s.clock.Now() }

// OutstandingByUser is the deletion guard used by the users module.
func (s *Service) OutstandingByUser(ctx context.Context, userID int64) (int64, error) {
	return s.store.OutstandingByUser(ctx, userID)
}
