package borrows

import (
	"database/sql"
	"strings"
	"time"
)

// Status は貸出の状態。更新APIでは文字列で届くため、必ず ParseStatus を通す。
type Status string

const (
	StatusBorrowed Status = "BORROWED"
	StatusReturned Status = "RETURNED"
	StatusOverdue  Status = "OVERDUE"
)

// ParseStatus resolves a client-supplied status string. Unknown values are
// rejected here, before any lifecycle logic runs.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusBorrowed:
		return StatusBorrowed, nil
	case StatusReturned:
		return StatusReturned, nil
	case StatusOverdue:
		return StatusOverdue, nil
	default:
		return "", ErrInvalidStatus(s)
	}
}

// Outstanding reports whether the log still holds reserved stock.
func (s Status) Outstanding() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

// BorrowLog は borrow_logs テーブルの1行を表す
type BorrowLog struct {
	ID                 int64
	BorrowULID         string
	ItemID             int64
	UserID             int64
	AdminID            int64
	QuantityBorrowed   int
	BorrowDate         time.Time
	ExpectedReturnDate sql.NullTime
	ActualReturnDate   sql.NullTime
	Status             Status
	Notes              sql.NullString
	CreatedAt          time.Time
}

// itemStock は貸出トランザクション中にロックした items 行の在庫ビュー
type itemStock struct {
	ID           int64
	Quantity     int
	Available    int
	IsBorrowable bool
}

// 一覧取得用の検索条件
type Filter struct {
	UserID      *int64
	ItemID      *int64
	Status      *Status
	OverdueOnly bool
}

type Page struct {
	Limit  int
	Offset int
}

// UpdateSpec は updateBorrow で変更可能なフィールド。nil は「変更なし」。
type UpdateSpec struct {
	Status             *Status
	Notes              *string
	ExpectedReturnDate *time.Time
}
