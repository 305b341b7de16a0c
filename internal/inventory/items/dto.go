package items

import "time"

// 画像を同時に受けるため、作成・更新は multipart/form-data で受ける。
type CreateItemRequest struct {
	Name            string  `form:"name" json:"name"`
	Description     *string `form:"description" json:"description"`
	CategoryID      *int64  `form:"category_id" json:"category_id"`
	Quantity        int     `form:"quantity" json:"quantity"`
	Unit            *string `form:"unit" json:"unit"`
	StorageLocation *string `form:"storage_location" json:"storage_location"`
	Condition       *string `form:"condition" json:"condition"`
	MinStockLevel   *int    `form:"min_stock_level" json:"min_stock_level"`
	IsBorrowable    *bool   `form:"is_borrowable" json:"is_borrowable"`
	ExpiryDate      *string `form:"expiry_date" json:"expiry_date"`
}

// UpdateItemRequest は部分更新。nil のフィールドは変更しない。
type UpdateItemRequest struct {
	Name            *string `form:"name" json:"name"`
	Description     *string `form:"description" json:"description"`
	CategoryID      *int64  `form:"category_id" json:"category_id"`
	Quantity        *int    `form:"quantity" json:"quantity"`
	Unit            *string `form:"unit" json:"unit"`
	StorageLocation *string `form:"storage_location" json:"storage_location"`
	Condition       *string `form:"condition" json:"condition"`
	MinStockLevel   *int    `form:"min_stock_level" json:"min_stock_level"`
	IsBorrowable    *bool   `form:"is_borrowable" json:"is_borrowable"`
	ExpiryDate      *string `form:"expiry_date" json:"expiry_date"`
}

type ItemResponse struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Description       *string `json:"description,omitempty"`
	CategoryID        *int64  `json:"category_id,omitempty"`
	CategoryName      *string `json:"category_name,omitempty"`
	Quantity          int     `json:"quantity"`
	AvailableQuantity int     `json:"available_quantity"`
	Unit              string  `json:"unit"`
	StorageLocation   *string `json:"storage_location,omitempty"`
	Condition         string  `json:"condition"`
	MinStockLevel     int     `json:"min_stock_level"`
	IsBorrowable      bool    `json:"is_borrowable"`
	ImageURL          *string `json:"image_url,omitempty"`
	ExpiryDate        *string `json:"expiry_date,omitempty"`
	CreatedBy         *int64  `json:"created_by,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         *string `json:"updated_at,omitempty"`
}

func buildItemResponse(d *ItemDetail) ItemResponse {
	resp := ItemResponse{
		ID:                d.ID,
		Name:              d.Name,
		Quantity:          d.Quantity,
		AvailableQuantity: d.AvailableQuantity,
		Unit:              d.Unit,
		Condition:         d.Condition,
		MinStockLevel:     d.MinStockLevel,
		IsBorrowable:      d.IsBorrowable,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.Description.Valid {
		resp.Description = &d.Description.String
	}
	if d.CategoryID.Valid {
		resp.CategoryID = &d.CategoryID.Int64
	}
	if d.CategoryName.Valid {
		resp.CategoryName = &d.CategoryName.String
	}
	if d.StorageLocation.Valid {
		resp.StorageLocation = &d.StorageLocation.String
	}
	if d.ImageURL.Valid {
		resp.ImageURL = &d.ImageURL.String
	}
	if d.CreatedBy.Valid {
		resp.CreatedBy = &d.CreatedBy.Int64
	}
	if d.ExpiryDate.Valid {
		s := d.ExpiryDate.Time.UTC().Format("2006-01-02")
		resp.ExpiryDate = &s
	}
	if d.UpdatedAt.Valid {
		s := d.UpdatedAt.Time.UTC().Format(time.RFC3339)
		resp.UpdatedAt = &s
	}
	return resp
}
