package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hrms.org/internal/auth"
)

var _ auth.Store = (*Store)(nil)

const userColumns = `id, username, password_hash, status, last_active, role_id, is_superuser, employee_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u          auth.User
		lastActive sql.NullTime
		roleID     sql.NullInt64
		employeeID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Status, &lastActive, &roleID,
		&u.IsSuperuser, &employeeID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastActive.Valid {
		t := lastActive.Time.UTC()
		u.LastActive = &t
	}
	if roleID.Valid {
		id := roleID.Int64
		u.RoleID = &id
	}
	if employeeID.Valid {
		e := employeeID.String
		u.EmployeeID = &e
	}
	return &u, nil
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.findUser(ctx, `username = $1`, username)
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, `id = $1`, id)
}

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	if s.db == nil {
		return errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, password_hash, status, last_active, role_id, is_superuser, employee_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, u.ID, u.Username, u.PasswordHash, u.Status, u.LastActive, u.RoleID, u.IsSuperuser, u.EmployeeID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return classify(err, fmt.Sprintf("username %q already exists", u.Username), "role not found")
	}
	return nil
}

// updateUserColumn writes a single column so concurrent writers never clobber
// each other's fields.
func (s *Store) updateUserColumn(ctx context.Context, query string, args ...any) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "user already exists", "role not found")
	}
	return affectedOrNotFound(res, auth.ErrNotFound)
}

func (s *Store) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	return s.updateUserColumn(ctx, `update users set last_active = $2, updated_at = now() where id = $1`, id, at.UTC())
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.updateUserColumn(ctx, `update users set password_hash = $2, updated_at = now() where id = $1`, id, hash)
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	return s.updateUserColumn(ctx, `update users set status = $2, updated_at = now() where id = $1`, id, status)
}

func (s *Store) SetRole(ctx context.Context, id string, roleID *int64) error {
	return s.updateUserColumn(ctx, `update users set role_id = $2, updated_at = now() where id = $1`, id, roleID)
}

func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GrantsForRole(ctx context.Context, roleID int64) ([]auth.Grant, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.resource, p.action
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []auth.Grant
	for rows.Next() {
		var g auth.Grant
		if err := rows.Scan(&g.Resource, &g.Action); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *Store) CreatePermission(ctx context.Context, p *auth.Permission) error {
	if s.db == nil {
		return errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into permissions (name, resource, action, description)
		values ($1, $2, $3, $4)
		returning id
	`, p.Name, p.Resource, string(p.Action), p.Description).Scan(&p.ID)
	if err != nil {
		return classify(err, fmt.Sprintf("permission %q already exists", p.Name), "")
	}
	return nil
}

func (s *Store) findPermission(ctx context.Context, where string, arg any) (*auth.Permission, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var p auth.Permission
	err := s.db.QueryRowContext(ctx, `
		select id, name, resource, action, description from permissions where `+where, arg).
		Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindPermission(ctx context.Context, id int64) (*auth.Permission, error) {
	return s.findPermission(ctx, `id = $1`, id)
}

func (s *Store) FindPermissionByName(ctx context.Context, name string) (*auth.Permission, error) {
	return s.findPermission(ctx, `name = $1`, name)
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select id, name, resource, action, description from permissions order by id`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	defer rows.Close()
	perms := []auth.Permission{}
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *auth.Permission) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update permissions set name = $2, resource = $3, action = $4, description = $5
		where id = $1
	`, p.ID, p.Name, p.Resource, string(p.Action), p.Description)
	if err != nil {
		return classify(err, fmt.Sprintf("permission %q already exists", p.Name), "")
	}
	return affectedOrNotFound(res, auth.ErrNotFound)
}

func (s *Store) DeletePermission(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, auth.ErrNotFound)
}

func (s *Store) CreateRole(ctx context.Context, role *auth.Role) error {
	if s.db == nil {
		return errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into roles (name, description) values ($1, $2) returning id
	`, role.Name, role.Description).Scan(&role.ID)
	if err != nil {
		return classify(err, fmt.Sprintf("role %q already exists", role.Name), "")
	}
	return nil
}

func (s *Store) findRole(ctx context.Context, where string, arg any) (*auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var r auth.Role
	err := s.db.QueryRowContext(ctx, `select id, name, description from roles where `+where, arg).
		Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	perms, err := s.rolePermissions(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return &r, nil
}

func (s *Store) rolePermissions(ctx context.Context, roleID int64) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.resource, p.action, p.description
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.id
	`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *Store) FindRole(ctx context.Context, id int64) (*auth.Role, error) {
	return s.findRole(ctx, `id = $1`, id)
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	return s.findRole(ctx, `lower(name) = lower($1)`, name)
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select id, name, description from roles order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []auth.Role{}
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := s.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, role *auth.Role) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `update roles set name = $2, description = $3 where id = $1`,
		role.ID, role.Name, role.Description)
	if err != nil {
		return classify(err, fmt.Sprintf("role %q already exists", role.Name), "")
	}
	return affectedOrNotFound(res, auth.ErrNotFound)
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, auth.ErrNotFound)
}

// SetRolePermissions replaces the role's permission set in one transaction.
func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int64
	if err := tx.QueryRowContext(ctx, `select id from roles where id = $1 for update`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id) values ($1, $2)
		`, roleID, pid); err != nil {
			return classify(err, "permission already assigned", fmt.Sprintf("permission %d not found", pid))
		}
	}
	return tx.Commit()
}
