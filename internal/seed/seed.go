// Package seed bootstraps the permission catalogue and the first superuser.
// Every operation is idempotent and safe to run on each deploy.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hrms.org/internal/auth"
)

// DefaultAdminRole names the role that receives every seeded permission.
const DefaultAdminRole = "System Administrator"

type RoleSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Manifest lists the protected resources to seed.
type Manifest struct {
	Resources []string  `yaml:"resources"`
	AdminRole *RoleSpec `yaml:"admin_role,omitempty"`
}

// DefaultManifest covers the built-in resources and grants them to DefaultAdminRole.
func DefaultManifest() *Manifest {
	return &Manifest{
		Resources: append([]string(nil), auth.BuiltinResources...),
		AdminRole: &RoleSpec{Name: DefaultAdminRole, Description: "Holds every seeded permission."},
	}
}

// ParseManifest decodes YAML manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if len(m.Resources) == 0 {
		return nil, errors.New("manifest lists no resources")
	}
	for i, r := range m.Resources {
		m.Resources[i] = strings.ToLower(strings.TrimSpace(r))
	}
	if m.AdminRole != nil && strings.TrimSpace(m.AdminRole.Name) == "" {
		return nil, errors.New("admin_role.name is required when admin_role is set")
	}
	return &m, nil
}

// LoadManifest reads path. A missing file yields DefaultManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Result reports what a seeding run changed.
type Result struct {
	Created  int
	Existing int
	AdminID  int64
}

type Seeder struct {
	store  auth.Store
	rbac   *auth.RBACService
	logger *slog.Logger
}

func NewSeeder(store auth.Store, rbac *auth.RBACService, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Seeder{store: store, rbac: rbac, logger: logger}
}

// Permissions ensures one permission per (resource, action) in m and, when m
// names an admin role, that the role holds all of them.
func (s *Seeder) Permissions(ctx context.Context, m *Manifest) (Result, error) {
	var res Result
	catalog := auth.CatalogFor(m.Resources)
	ids := make([]int64, 0, len(catalog))
	for _, want := range catalog {
		p, created, err := s.ensurePermission(ctx, want)
		if err != nil {
			return res, fmt.Errorf("seed permission %s: %w", want.Name, err)
		}
		if created {
			res.Created++
		} else {
			res.Existing++
		}
		ids = append(ids, p.ID)
	}

	if m.AdminRole != nil {
		role, err := s.ensureRole(ctx, *m.AdminRole)
		if err != nil {
			return res, fmt.Errorf("seed role %s: %w", m.AdminRole.Name, err)
		}
		for _, p := range role.Permissions {
			ids = append(ids, p.ID)
		}
		if err := s.rbac.SetRolePermissions(ctx, role.ID, ids); err != nil {
			return res, fmt.Errorf("grant %s: %w", role.Name, err)
		}
		res.AdminID = role.ID
	}
	s.logger.InfoContext(ctx, "permissions seeded",
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
	)
	return res, nil
}

func (s *Seeder) ensurePermission(ctx context.Context, want auth.Permission) (*auth.Permission, bool, error) {
	p, err := s.store.FindPermissionByName(ctx, want.Name)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, false, err
	}
	p = &want
	if err := s.store.CreatePermission(ctx, p); err != nil {
		if errors.Is(err, auth.ErrConflict) {
			// concurrent seeder won the insert
			existing, findErr := s.store.FindPermissionByName(ctx, want.Name)
			return existing, false, findErr
		}
		return nil, false, err
	}
	return p, true, nil
}

func (s *Seeder) ensureRole(ctx context.Context, spec RoleSpec) (*auth.Role, error) {
	role, err := s.store.FindRoleByName(ctx, spec.Name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, err
	}
	return s.rbac.CreateRole(ctx, auth.RoleInput{Name: spec.Name, Description: spec.Description})
}

// Superuser creates the configured superuser when absent. An existing account
// is left untouched, including its password.
func (s *Seeder) Superuser(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		s.logger.WarnContext(ctx, "superuser credentials are not set, skipping superuser creation")
		return false, nil
	}
	_, err := s.store.FindByUsername(ctx, username)
	if err == nil {
		s.logger.InfoContext(ctx, "superuser already exists", slog.String("username", username))
		return false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return false, fmt.Errorf("lookup superuser: %w", err)
	}
	if _, err := s.rbac.CreateUser(ctx, auth.UserInput{
		Username:    username,
		Password:    password,
		Status:      auth.StatusActive,
		IsSuperuser: true,
	}); err != nil {
		return false, fmt.Errorf("create superuser: %w", err)
	}
	s.logger.InfoContext(ctx, "superuser created", slog.String("username", username))
	return true, nil
}
