package items

import (
	"database/sql"
	"time"
)

// Item は items テーブルの 1 行。available_quantity は貸出で減り、返却で戻る。
type Item struct {
	ID                int64
	Name              string
	NameFolded        string
	Description       sql.NullString
	CategoryID        sql.NullInt64
	Quantity          int
	AvailableQuantity int
	Unit              string
	StorageLocation   sql.NullString
	Condition         string
	MinStockLevel     int
	IsBorrowable      bool
	ImageURL          sql.NullString
	ExpiryDate        sql.NullTime
	CreatedBy         sql.NullInt64
	CreatedAt         time.Time
	UpdatedAt         sql.NullTime
}

// Filter は一覧の絞り込み条件。nil のフィールドは無条件。
type Filter struct {
	Search          string
	CategoryID      *int64
	StorageLocation *string
	Condition       *string
	LowStock        bool
	BorrowableOnly  bool
}

type Page struct {
	Limit  int
	Offset int
}
