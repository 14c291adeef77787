// Package memory keeps users, roles, permissions and departments in process.
// It backs the API when no database is configured and serves as the fixture
// store in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hrms.org/internal/auth"
	"hrms.org/internal/department"
)

var (
	_ auth.Store       = (*Store)(nil)
	_ department.Store = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	users       map[string]*auth.User
	roles       map[int64]*auth.Role
	permissions map[int64]*auth.Permission
	rolePerms   map[int64][]int64
	departments map[int64]*department.Department

	nextRole       int64
	nextPermission int64
	nextDepartment int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:       map[string]*auth.User{},
		roles:       map[int64]*auth.Role{},
		permissions: map[int64]*auth.Permission{},
		rolePerms:   map[int64][]int64{},
		departments: map[int64]*department.Department{},
		now:         time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.LastActive != nil {
		t := *u.LastActive
		c.LastActive = &t
	}
	if u.RoleID != nil {
		id := *u.RoleID
		c.RoleID = &id
	}
	if u.EmployeeID != nil {
		e := *u.EmployeeID
		c.EmployeeID = &e
	}
	return &c
}

func (s *Store) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) Create(_ context.Context, u *auth.User) error {
	if u == nil || u.ID == "" {
		return auth.Validation("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return auth.Conflict("user already exists")
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return auth.Conflict(fmt.Sprintf("username %q already exists", u.Username))
		}
	}
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = cloneUser(u)
	return nil
}

// updateUser applies fn to the stored record under the write lock.
func (s *Store) updateUser(id string, fn func(u *auth.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) TouchLastActive(_ context.Context, id string, at time.Time) error {
	return s.updateUser(id, func(u *auth.User) {
		t := at.UTC()
		u.LastActive = &t
	})
}

func (s *Store) SetPasswordHash(_ context.Context, id, hash string) error {
	return s.updateUser(id, func(u *auth.User) { u.PasswordHash = hash })
}

func (s *Store) SetStatus(_ context.Context, id, status string) error {
	return s.updateUser(id, func(u *auth.User) { u.Status = status })
}

func (s *Store) SetRole(_ context.Context, id string, roleID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	if roleID == nil {
		u.RoleID = nil
	} else {
		if _, ok := s.roles[*roleID]; !ok {
			return auth.NotFound(fmt.Sprintf("role %d not found", *roleID))
		}
		rid := *roleID
		u.RoleID = &rid
	}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) List(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) GrantsForRole(_ context.Context, roleID int64) ([]auth.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.roles[roleID]; !ok {
		return nil, nil
	}
	var grants []auth.Grant
	for _, pid := range s.rolePerms[roleID] {
		if p, ok := s.permissions[pid]; ok {
			grants = append(grants, p.Grant())
		}
	}
	return grants, nil
}

func (s *Store) CreatePermission(_ context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Name == p.Name {
			return auth.Conflict(fmt.Sprintf("permission %q already exists", p.Name))
		}
	}
	s.nextPermission++
	p.ID = s.nextPermission
	c := *p
	s.permissions[p.ID] = &c
	return nil
}

func (s *Store) FindPermission(_ context.Context, id int64) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) FindPermissionByName(_ context.Context, name string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name {
			c := *p
			return &c, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) ListPermissions(_ context.Context) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPermissions(nil), nil
}

// sortedPermissions returns the permissions named by ids (all when ids is nil), ordered by id.
func (s *Store) sortedPermissions(ids []int64) []auth.Permission {
	out := []auth.Permission{}
	if ids == nil {
		for _, p := range s.permissions {
			out = append(out, *p)
		}
	} else {
		for _, id := range ids {
			if p, ok := s.permissions[id]; ok {
				out = append(out, *p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdatePermission(_ context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID]; !ok {
		return auth.ErrNotFound
	}
	for id, existing := range s.permissions {
		if id != p.ID && existing.Name == p.Name {
			return auth.Conflict(fmt.Sprintf("permission %q already exists", p.Name))
		}
	}
	c := *p
	s.permissions[p.ID] = &c
	return nil
}

func (s *Store) DeletePermission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.permissions, id)
	for roleID, ids := range s.rolePerms {
		s.rolePerms[roleID] = removeID(ids, id)
	}
	return nil
}

func (s *Store) CreateRole(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return auth.Conflict(fmt.Sprintf("role %q already exists", role.Name))
		}
	}
	s.nextRole++
	role.ID = s.nextRole
	s.roles[role.ID] = &auth.Role{ID: role.ID, Name: role.Name, Description: role.Description}
	return nil
}

func (s *Store) loadRole(id int64) (*auth.Role, bool) {
	r, ok := s.roles[id]
	if !ok {
		return nil, false
	}
	return &auth.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: s.sortedPermissions(append([]int64{}, s.rolePerms[id]...)),
	}, true
}

func (s *Store) FindRole(_ context.Context, id int64) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.loadRole(id)
	if !ok {
		return nil, auth.ErrNotFound
	}
	return r, nil
}

func (s *Store) FindRoleByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			role, _ := s.loadRole(id)
			return role, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Role, 0, len(s.roles))
	for id := range s.roles {
		r, _ := s.loadRole(id)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateRole(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.roles[role.ID]
	if !ok {
		return auth.ErrNotFound
	}
	for id, r := range s.roles {
		if id != role.ID && strings.EqualFold(r.Name, role.Name) {
			return auth.Conflict(fmt.Sprintf("role %q already exists", role.Name))
		}
	}
	existing.Name = role.Name
	existing.Description = role.Description
	return nil
}

func (s *Store) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	for _, u := range s.users {
		if u.RoleID != nil && *u.RoleID == id {
			u.RoleID = nil
		}
	}
	return nil
}

func (s *Store) SetRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	for _, id := range permissionIDs {
		if _, ok := s.permissions[id]; !ok {
			return auth.NotFound(fmt.Sprintf("permission %d not found", id))
		}
	}
	s.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func removeID(ids []int64, target int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) CreateDepartment(_ context.Context, d *department.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.departments {
		if strings.EqualFold(existing.Name, d.Name) {
			return auth.Conflict(fmt.Sprintf("department %q already exists", d.Name))
		}
	}
	s.nextDepartment++
	now := s.now().UTC()
	d.ID = s.nextDepartment
	d.CreatedAt = now
	d.UpdatedAt = now
	c := *d
	s.departments[d.ID] = &c
	return nil
}

func (s *Store) FindDepartment(_ context.Context, id int64) (*department.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, auth.NotFound("Department not found")
	}
	c := *d
	return &c, nil
}

func (s *Store) ListDepartments(_ context.Context, offset, limit int) ([]department.Department, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]department.Department, 0, len(s.departments))
	for _, d := range s.departments {
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return []department.Department{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) UpdateDepartment(_ context.Context, d *department.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.departments[d.ID]
	if !ok {
		return auth.NotFound("Department not found")
	}
	for id, other := range s.departments {
		if id != d.ID && strings.EqualFold(other.Name, d.Name) {
			return auth.Conflict(fmt.Sprintf("department %q already exists", d.Name))
		}
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now().UTC()
	c := *d
	s.departments[d.ID] = &c
	return nil
}

func (s *Store) DeleteDepartment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[id]; !ok {
		return auth.NotFound("Department not found")
	}
	delete(s.departments, id)
	return nil
}
