package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RoleInput struct {
	Name          string
	Description   string
	PermissionIDs []int64
}

type RoleUpdate struct {
	Name        *string
	Description *string
}

type PermissionInput struct {
	Name        string
	Resource    string
	Action      string
	Description string
}

type PermissionUpdate struct {
	Name        *string
	Resource    *string
	Action      *string
	Description *string
}

type UserInput struct {
	Username    string
	Password    string
	Status      string
	RoleID      *int64
	IsSuperuser bool
	EmployeeID  *string
}

// RBACService manages the user, role and permission records the evaluator reads.
type RBACService struct {
	store  Store
	hasher *PasswordHasher
	now    func() time.Time
}

func NewRBACService(store Store, hasher *PasswordHasher) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	return &RBACService{store: store, hasher: hasher, now: time.Now}, nil
}

func (s *RBACService) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Validation("role name is required")
	}
	role := &Role{Name: name, Description: strings.TrimSpace(in.Description)}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	if len(in.PermissionIDs) > 0 {
		if err := s.SetRolePermissions(ctx, role.ID, in.PermissionIDs); err != nil {
			return nil, err
		}
	}
	return s.store.FindRole(ctx, role.ID)
}

func (s *RBACService) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RBACService) GetRole(ctx context.Context, id int64) (*Role, error) {
	if id <= 0 {
		return nil, Validation("role id must be positive")
	}
	return s.store.FindRole(ctx, id)
}

func (s *RBACService) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (*Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, Validation("role name is required")
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, id int64) error {
	if id <= 0 {
		return Validation("role id must be positive")
	}
	return s.store.DeleteRole(ctx, id)
}

// SetRolePermissions replaces the role's permission set. Every id must exist.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if roleID <= 0 {
		return Validation("role id must be positive")
	}
	ids := dedupeIDs(permissionIDs)
	for _, id := range ids {
		if _, err := s.store.FindPermission(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return NotFound(fmt.Sprintf("permission %d not found", id))
			}
			return err
		}
	}
	return s.store.SetRolePermissions(ctx, roleID, ids)
}

func (s *RBACService) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	resource := strings.TrimSpace(strings.ToLower(in.Resource))
	if resource == "" {
		return nil, Validation("resource is required")
	}
	action, err := ParseAction(in.Action)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = PermissionName(resource, action)
	}
	p := &Permission{
		Name:        name,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.store.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *RBACService) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	if id <= 0 {
		return nil, Validation("permission id must be positive")
	}
	return s.store.FindPermission(ctx, id)
}

func (s *RBACService) UpdatePermission(ctx context.Context, id int64, upd PermissionUpdate) (*Permission, error) {
	p, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, Validation("permission name is required")
		}
		p.Name = name
	}
	if upd.Resource != nil {
		res := strings.TrimSpace(strings.ToLower(*upd.Resource))
		if res == "" {
			return nil, Validation("resource is required")
		}
		p.Resource = res
	}
	if upd.Action != nil {
		action, err := ParseAction(*upd.Action)
		if err != nil {
			return nil, err
		}
		p.Action = action
	}
	if upd.Description != nil {
		p.Description = strings.TrimSpace(*upd.Description)
	}
	if err := s.store.UpdatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *RBACService) DeletePermission(ctx context.Context, id int64) error {
	if id <= 0 {
		return Validation("permission id must be positive")
	}
	return s.store.DeletePermission(ctx, id)
}

// CreateUser hashes the password and stores a new account. Status defaults to active.
func (s *RBACService) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, Validation("username is required")
	}
	if in.Password == "" {
		return nil, Validation("password is required")
	}
	status := strings.TrimSpace(strings.ToLower(in.Status))
	if status == "" {
		status = StatusActive
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Status:       status,
		RoleID:       in.RoleID,
		IsSuperuser:  in.IsSuperuser,
		EmployeeID:   in.EmployeeID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *RBACService) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// AssignRole sets or clears (roleID == nil) the user's role.
func (s *RBACService) AssignRole(ctx context.Context, userID string, roleID *int64) (*User, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, roleID); err != nil {
		return nil, err
	}
	if err := s.store.SetRole(ctx, u.ID, roleID); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, u.ID)
}

// SetStatus changes the account status. Only "active" accounts can log in.
func (s *RBACService) SetStatus(ctx context.Context, userID, status string) (*User, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return nil, Validation("status is required")
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetStatus(ctx, u.ID, status); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, u.ID)
}

func (s *RBACService) findUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, Validation("user id is required")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, Validation("user id must be a uuid")
	}
	return s.store.FindByID(ctx, userID)
}

func (s *RBACService) checkRole(ctx context.Context, roleID *int64) error {
	if roleID == nil {
		return nil
	}
	if _, err := s.store.FindRole(ctx, *roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFound(fmt.Sprintf("role %d not found", *roleID))
		}
		return err
	}
	return nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func dedupeIDs(values []int64) []int64 {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(values))
	result := make([]int64, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
