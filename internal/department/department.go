package department

import (
	"context"
	"errors"
	"strings"
	"time"

	"hrms.org/internal/auth"
)

// Department is an organisational unit employees belong to.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists departments. Missing rows yield auth.ErrNotFound and duplicate
// names yield a conflict error.
type Store interface {
	CreateDepartment(ctx context.Context, d *Department) error
	FindDepartment(ctx context.Context, id int64) (*Department, error)
	ListDepartments(ctx context.Context, offset, limit int) ([]Department, int, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	DeleteDepartment(ctx context.Context, id int64) error
}

type Input struct {
	Name        string
	Description string
	IsActive    *bool
}

type Update struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Page is the list envelope.
type Page struct {
	Data  []Department `json:"data"`
	Count int          `json:"count"`
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("department store is required")
	}
	return &Service{store: store}, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Department, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, auth.Validation("department name is required")
	}
	d := &Department{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	if err := s.store.CreateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns one page plus the total number of departments.
func (s *Service) List(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, auth.Validation("skip must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	items, total, err := s.store.ListDepartments(ctx, offset, limit)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Department{}
	}
	return Page{Data: items, Count: total}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Department, error) {
	if id <= 0 {
		return nil, auth.Validation("department id must be positive")
	}
	return s.store.FindDepartment(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, upd Update) (*Department, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, auth.Validation("department name is required")
		}
		d.Name = name
	}
	if upd.Description != nil {
		d.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.IsActive != nil {
		d.IsActive = *upd.IsActive
	}
	if err := s.store.UpdateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return auth.Validation("department id must be positive")
	}
	return s.store.DeleteDepartment(ctx, id)
}
