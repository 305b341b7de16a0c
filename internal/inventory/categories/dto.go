package categories

import "time"

type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type CategoryResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	ItemsCount  int     `json:"items_count"`
	CreatedAt   string  `json:"created_at"`
}

func buildCategoryResponse(m *CategoryWithCount) CategoryResponse {
	resp := CategoryResponse{
		ID:         m.ID,
		Name:       m.Name,
		ItemsCount: m.ItemsCount,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	return resp
}
