package items

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Service struct {
	store *Store
	clock Clock
}

func NewService(d *sql.DB) *Service {
	return &Service{store: NewStore(d), clock: realClock{}}
}

// adjustAvailable は在庫総数の変更を引当済み数量と整合させる。
// 差分 (newQty - oldQty) を available にも適用し、貸出中の数量を
// 下回る縮小は拒否する。
func adjustAvailable(oldQty, newQty, avail int) (int, error) {
	if newQty < 0 {
		return 0, ErrInvalid("quantity must not be negative")
	}
	newAvail := avail + (newQty - oldQty)
	if newAvail < 0 {
		outstanding := oldQty - avail
		return 0, ErrConflict(fmt.Sprintf(
			"cannot reduce quantity to %d: %d unit(s) currently on loan", newQty, outstanding))
	}
	return newAvail, nil
}

func parseExpiryDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalid("expiry_date must be YYYY-MM-DD")
	}
	return t, nil
}

func (s *Service) CreateItem(ctx context.Context, creatorID int64, req CreateItemRequest, imageURL *string) (*ItemDetail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	if req.Quantity < 0 {
		return nil, ErrInvalid("quantity must not be negative")
	}

	m := &Item{
		Name:       name,
		NameFolded: foldString(name),
		Quantity:   req.Quantity,
		// 新規作成時は貸出が存在しないので available = quantity。
		AvailableQuantity: req.Quantity,
		Unit:              "個",
		Condition:         "good",
		IsBorrowable:      true,
		CreatedBy:         sql.NullInt64{Int64: creatorID, Valid: creatorID > 0},
		CreatedAt:         s.clock.Now(),
	}
	if req.Description != nil {
		m.Description = sql.NullString{String: *req.Description, Valid: true}
	}
	if req.CategoryID != nil {
		m.CategoryID = sql.NullInt64{Int64: *req.CategoryID, Valid: true}
	}
	if req.Unit != nil && strings.TrimSpace(*req.Unit) != "" {
		m.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.StorageLocation != nil {
		m.StorageLocation = sql.NullString{String: *req.StorageLocation, Valid: true}
	}
	if req.Condition != nil && strings.TrimSpace(*req.Condition) != "" {
		m.Condition = strings.TrimSpace(*req.Condition)
	}
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return nil, ErrInvalid("min_stock_level must not be negative")
		}
		m.MinStockLevel = *req.MinStockLevel
	}
	if req.IsBorrowable != nil {
		m.IsBorrowable = *req.IsBorrowable
	}
	if req.ExpiryDate != nil && *req.ExpiryDate != "" {
		t, err := parseExpiryDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		m.ExpiryDate = sql.NullTime{Time: t, Valid: true}
	}
	if imageURL != nil {
		m.ImageURL = sql.NullString{String: *imageURL, Valid: true}
	}

	if err := s.store.ExecCreate(ctx, m); err != nil {
		return nil, err
	}
	return s.store.GetItemByID(ctx, m.ID)
}

func (s *Service) UpdateItem(ctx context.Context, id int64, req UpdateItemRequest, imageURL *string) (*ItemDetail, error) {
	var spec updateSpec
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalid("name must not be empty")
		}
		spec.Name = &name
	}
	spec.Description = req.Description
	spec.CategoryID = req.CategoryID
	spec.Quantity = req.Quantity
	spec.Unit = req.Unit
	spec.StorageLocation = req.StorageLocation
	spec.Condition = req.Condition
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return nil, ErrInvalid("min_stock_level must not be negative")
		}
		spec.MinStockLevel = req.MinStockLevel
	}
	spec.IsBorrowable = req.IsBorrowable
	if req.ExpiryDate != nil && *req.ExpiryDate != "" {
		t, err := parseExpiryDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		spec.ExpiryDate = &t
	}
	spec.ImageURL = imageURL

	if err := s.store.ExecUpdate(ctx, id, spec, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.store.GetItemByID(ctx, id)
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	return s.store.ExecDelete(ctx, id)
}

func (s *Service) GetItem(ctx context.Context, id int64) (*ItemDetail, error) {
	return s.store.GetItemByID(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, f Filter, p Page) ([]*ItemDetail, error) {
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return s.store.ListItems(ctx, f, p)
}
