package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hrms.org/internal/auth"
	"hrms.org/internal/store/memory"
)

func newRBAC(t *testing.T) (*auth.RBACService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := auth.NewRBACService(store, auth.NewPasswordHasher(auth.SchemeBcrypt, 4))
	require.NoError(t, err)
	return svc, store
}

func TestRBACRolePermissionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store := newRBAC(t)

	perm, err := svc.CreatePermission(ctx, auth.PermissionInput{Resource: "Department", Action: "create"})
	require.NoError(t, err)
	require.Equal(t, "create_department", perm.Name)
	require.Equal(t, "department", perm.Resource)

	_, err = svc.CreatePermission(ctx, auth.PermissionInput{Resource: "department", Action: "approve"})
	require.Equal(t, auth.KindValidation, auth.KindOf(err))

	role, err := svc.CreateRole(ctx, auth.RoleInput{Name: "HR", PermissionIDs: []int64{perm.ID, perm.ID}})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)

	_, err = svc.CreateRole(ctx, auth.RoleInput{Name: "HR"})
	require.Equal(t, auth.KindConflict, auth.KindOf(err))

	err = svc.SetRolePermissions(ctx, role.ID, []int64{perm.ID, 404})
	require.Equal(t, auth.KindNotFound, auth.KindOf(err))

	grants, err := store.GrantsForRole(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, []auth.Grant{{Resource: "department", Action: auth.ActionCreate}}, grants)

	name := "People Ops"
	updated, err := svc.UpdateRole(ctx, role.ID, auth.RoleUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "People Ops", updated.Name)

	action := "list"
	p2, err := svc.UpdatePermission(ctx, perm.ID, auth.PermissionUpdate{Action: &action})
	require.NoError(t, err)
	require.Equal(t, auth.ActionList, p2.Action)

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	_, err = svc.GetRole(ctx, role.ID)
	require.Equal(t, auth.KindNotFound, auth.KindOf(err))
}

func TestRBACUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRBAC(t)

	role, err := svc.CreateRole(ctx, auth.RoleInput{Name: "Viewer"})
	require.NoError(t, err)

	u, err := svc.CreateUser(ctx, auth.UserInput{Username: "dave", Password: "passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, auth.StatusActive, u.Status)
	require.NotEqual(t, "passw0rd!", u.PasswordHash)

	_, err = svc.CreateUser(ctx, auth.UserInput{Username: "dave", Password: "x"})
	require.Equal(t, auth.KindConflict, auth.KindOf(err))

	missing := int64(99)
	_, err = svc.CreateUser(ctx, auth.UserInput{Username: "erin", Password: "x", RoleID: &missing})
	require.Equal(t, auth.KindNotFound, auth.KindOf(err))

	assigned, err := svc.AssignRole(ctx, u.ID, &role.ID)
	require.NoError(t, err)
	require.Equal(t, role.ID, *assigned.RoleID)

	cleared, err := svc.AssignRole(ctx, u.ID, nil)
	require.NoError(t, err)
	require.Nil(t, cleared.RoleID)

	locked, err := svc.SetStatus(ctx, u.ID, "Inactive")
	require.NoError(t, err)
	require.Equal(t, auth.StatusInactive, locked.Status)

	_, err = svc.SetStatus(ctx, "not-a-uuid", "active")
	require.Equal(t, auth.KindValidation, auth.KindOf(err))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestCatalogFor(t *testing.T) {
	perms := auth.CatalogFor([]string{"department", " department ", "job", ""})
	require.Len(t, perms, 2*len(auth.Actions))
	require.Equal(t, "create_department", perms[0].Name)
	require.Equal(t, "list_job", perms[len(perms)-1].Name)
}

// interleavingStore runs an admin mutation between the authenticator's read
// and its bookkeeping write.
type interleavingStore struct {
	*memory.Store
	beforeTouch    func()
	beforePassword func()
}

func (s *interleavingStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	if s.beforeTouch != nil {
		s.beforeTouch()
	}
	return s.Store.TouchLastActive(ctx, id, at)
}

func (s *interleavingStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	if s.beforePassword != nil {
		s.beforePassword()
	}
	return s.Store.SetPasswordHash(ctx, id, hash)
}

func TestConcurrentAdminChangesSurviveUserWrites(t *testing.T) {
	ctx := context.Background()
	store := &interleavingStore{Store: memory.New()}
	hasher := auth.NewPasswordHasher(auth.SchemeBcrypt, 4)
	rbac, err := auth.NewRBACService(store, hasher)
	require.NoError(t, err)
	codec, err := auth.NewTokenCodec("test-secret", "HS256", time.Minute)
	require.NoError(t, err)
	svc, err := auth.NewService(store, hasher, codec)
	require.NoError(t, err)

	role, err := rbac.CreateRole(ctx, auth.RoleInput{Name: "HR"})
	require.NoError(t, err)
	u, err := rbac.CreateUser(ctx, auth.UserInput{Username: "frank", Password: "frank-secret", RoleID: &role.ID})
	require.NoError(t, err)

	store.beforeTouch = func() {
		_, err := rbac.SetStatus(ctx, u.ID, auth.StatusInactive)
		require.NoError(t, err)
	}
	_, _, err = svc.Login(ctx, "frank", "frank-secret")
	require.NoError(t, err)
	store.beforeTouch = nil

	stored, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, auth.StatusInactive, stored.Status, "deactivation lost to login bookkeeping")
	require.NotNil(t, stored.LastActive)

	store.beforePassword = func() {
		_, err := rbac.AssignRole(ctx, u.ID, nil)
		require.NoError(t, err)
	}
	require.NoError(t, svc.ChangePassword(ctx, stored, "frank-new-secret"))

	stored, err = store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.RoleID, "role change lost to password write")
	require.Equal(t, auth.StatusInactive, stored.Status)
	require.True(t, hasher.Verify("frank-new-secret", stored.PasswordHash))
}
