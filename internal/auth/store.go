package auth

import (
	"context"
	"time"
)

// UserStore is the credential store consulted by authentication. Lookups
// return ErrNotFound for missing records; any other error is a storage fault.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// The setters below each write one column (plus updated_at) so that
	// concurrent writers never overwrite each other's fields.
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetStatus(ctx context.Context, id, status string) error
	SetRole(ctx context.Context, id string, roleID *int64) error
	Create(ctx context.Context, u *User) error
	List(ctx context.Context) ([]*User, error)
}

// PermissionStore resolves and manages permissions.
type PermissionStore interface {
	GrantsForRole(ctx context.Context, roleID int64) ([]Grant, error)

	CreatePermission(ctx context.Context, p *Permission) error
	FindPermission(ctx context.Context, id int64) (*Permission, error)
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermission(ctx context.Context, p *Permission) error
	DeletePermission(ctx context.Context, id int64) error
}

// RoleStore manages roles and their permission sets.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role) error
	FindRole(ctx context.Context, id int64) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// Store aggregates the persistence the auth subsystem needs.
type Store interface {
	UserStore
	PermissionStore
	RoleStore
}
