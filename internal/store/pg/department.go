package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hrms.org/internal/auth"
	"hrms.org/internal/department"
)

var _ department.Store = (*Store)(nil)

var errDepartmentNotFound = auth.NotFound("Department not found")

func (s *Store) CreateDepartment(ctx context.Context, d *department.Department) error {
	if s.db == nil {
		return errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into departments (name, description, is_active)
		values ($1, $2, $3)
		returning id, created_at, updated_at
	`, d.Name, d.Description, d.IsActive).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return classify(err, fmt.Sprintf("department %q already exists", d.Name), "")
	}
	return nil
}

func (s *Store) FindDepartment(ctx context.Context, id int64) (*department.Department, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var d department.Department
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, is_active, created_at, updated_at
		from departments where id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errDepartmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListDepartments(ctx context.Context, offset, limit int) ([]department.Department, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from departments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, is_active, created_at, updated_at
		from departments
		order by id
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []department.Department{}
	for rows.Next() {
		var d department.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, d *department.Department) error {
	if s.db == nil {
		return errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		update departments
		set name = $2, description = $3, is_active = $4, updated_at = now()
		where id = $1
		returning created_at, updated_at
	`, d.ID, d.Name, d.Description, d.IsActive).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errDepartmentNotFound
	}
	if err != nil {
		return classify(err, fmt.Sprintf("department %q already exists", d.Name), "")
	}
	return nil
}

func (s *Store) DeleteDepartment(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from departments where id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, errDepartmentNotFound)
}
