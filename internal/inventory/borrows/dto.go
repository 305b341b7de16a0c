package borrows

import "time"

// 貸出登録リクエスト。承認者(admin_id)は未指定なら認証済み管理者を使う。
type CreateBorrowRequest struct {
	ItemID             int64   `json:"item_id" binding:"required"`
	UserID             int64   `json:"user_id" binding:"required"`
	AdminID            int64   `json:"admin_id"`
	QuantityBorrowed   int     `json:"quantity_borrowed" binding:"required"`
	ExpectedReturnDate *string `json:"expected_return_date,omitempty"`
	Notes              *string `json:"notes,omitempty"`
}

// 更新リクエスト。status は自由形式の文字列で届くが ParseStatus で閉じた型に落とす。
type UpdateBorrowRequest struct {
	Status             *string `json:"status,omitempty"`
	ExpectedReturnDate *string `json:"expected_return_date,omitempty"`
	Notes              *string `json:"notes,omitempty"`
}

type ReturnRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type BorrowResponse struct {
	ID                 int64      `json:"id"`
	BorrowULID         string     `json:"borrow_ulid"`
	ItemID             int64      `json:"item_id"`
	UserID             int64      `json:"user_id"`
	AdminID            int64      `json:"admin_id"`
	QuantityBorrowed   int        `json:"quantity_borrowed"`
	BorrowDate         time.Time  `json:"borrow_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
	Status             Status     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	ItemName           *string    `json:"item_name,omitempty"`
	BorrowerName       *string    `json:"borrower_name,omitempty"`
	AdminName          *string    `json:"admin_name,omitempty"`
}

type SweepResponse struct {
	TransitionedCount int64     `json:"transitioned_count"`
	RanAt             time.Time `json:"ran_at"`
}

func buildBorrowResponse(l *BorrowLog) BorrowResponse {
	resp := BorrowResponse{
		ID:               l.ID,
		BorrowULID:       l.BorrowULID,
		ItemID:           l.ItemID,
		UserID:           l.UserID,
		AdminID:          l.AdminID,
		QuantityBorrowed: l.QuantityBorrowed,
		BorrowDate:       l.BorrowDate,
		Status:           l.Status,
	}
	if l.ExpectedReturnDate.Valid {
		val := l.ExpectedReturnDate.Time
		resp.ExpectedReturnDate = &val
	}
	if l.ActualReturnDate.Valid {
		val := l.ActualReturnDate.Time
		resp.ActualReturnDate = &val
	}
	if l.Notes.Valid {
		val := l.Notes.String
		resp.Notes = &val
	}
	return resp
}

func buildDetailResponse(d *BorrowDetail) BorrowResponse {
	resp := buildBorrowResponse(&d.BorrowLog)
	if d.ItemName != "" {
		val := d.ItemName
		resp.ItemName = &val
	}
	if d.BorrowerName != "" {
		val := d.BorrowerName
		resp.BorrowerName = &val
	}
	if d.AdminName != "" {
		val := d.AdminName
		resp.AdminName = &val
	}
	return resp
}
