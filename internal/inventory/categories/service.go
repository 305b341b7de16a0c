package categories

import (
	"context"
	"database/sql"
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

func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*CategoryWithCount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}

	m := &Category{Name: name, CreatedAt: s.clock.Now()}
	if req.Description != nil {
		m.Description = sql.NullString{String: *req.Description, Valid: true}
	}
	if err := s.store.ExecCreate(ctx, m); err != nil {
		return nil, err
	}
	return s.store.GetCategoryByID(ctx, m.ID)
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, req UpdateCategoryRequest) (*CategoryWithCount, error) {
	var name *string
	if req.Name != nil {
		n := strings.TrimSpace(*req.Name)
		if n == "" {
			return nil, ErrInvalid("name must not be empty")
		}
		name = &n
	}
	if err := s.store.ExecUpdate(ctx, id, name, req.Description); err != nil {
		return nil, err
	}
	return s.store.GetCategoryByID(ctx, id)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.ExecDelete(ctx, id)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*CategoryWithCount, error) {
	return s.store.GetCategoryByID(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]*CategoryWithCount, error) {
	return s.store.ListCategories(ctx)
}
