package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupWith(perms ...ModulePermission) Group {
	return Group{Type: GroupCustom, Scope: ScopeOrganization, Permissions: perms}
}

func TestEffectiveModulePermissionsTakesMax(t *testing.T) {
	groups := []Group{
		groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelRead}),
		groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelExecute}),
		groupWith(ModulePermission{ModuleKey: "intake", AccessLevel: LevelWrite}),
	}
	effective := EffectiveModulePermissions(groups)
	assert.Equal(t, LevelExecute, effective["dashboard"])
	assert.Equal(t, LevelWrite, effective["intake"])
	_, ok := effective["settings"]
	assert.False(t, ok, "unnamed module must yield no entry")
}

func TestEffectiveModulePermissionsOrderIndependent(t *testing.T) {
	a := groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelRead})
	b := groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelWrite})
	forward := EffectiveModulePermissions([]Group{a, b})
	backward := EffectiveModulePermissions([]Group{b, a})
	assert.Equal(t, forward, backward)
}

func TestHasModuleAccess(t *testing.T) {
	groups := []Group{groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelRead})}
	assert.True(t, HasModuleAccess(groups, "dashboard"))
	assert.False(t, HasModuleAccess(groups, "settings"))
	assert.False(t, HasModuleAccess(nil, "dashboard"))

	none := []Group{groupWith(ModulePermission{ModuleKey: "dashboard", AccessLevel: LevelNone})}
	assert.False(t, HasModuleAccess(none, "dashboard"))
}

func TestFeatureAccessIndependentOfModuleLevel(t *testing.T) {
	// The feature is readable even though the module level is none.
	groups := []Group{groupWith(ModulePermission{
		ModuleKey:   ModuleUsersRoles,
		AccessLevel: LevelNone,
		Features: []FeaturePermission{
			{FeatureKey: FeatureCreateUsers, AccessLevel: LevelWrite},
		},
	})}
	assert.True(t, HasFeatureAccess(groups, ModuleUsersRoles, FeatureCreateUsers))
	assert.False(t, HasFeatureAccess(groups, ModuleUsersRoles, FeatureManageGroups))

	// But CanManageUsers still requires module access.
	assert.False(t, CanManageUsers(groups))
}

func TestFeatureAccessNotMergedAcrossGroups(t *testing.T) {
	// One group grants the module, another grants the feature; the
	// feature check passes because any single group listing it with
	// read or better is sufficient.
	groups := []Group{
		groupWith(ModulePermission{ModuleKey: ModuleUsersRoles, AccessLevel: LevelExecute}),
		groupWith(ModulePermission{
			ModuleKey: ModuleUsersRoles,
			Features:  []FeaturePermission{{FeatureKey: FeatureManageGroups, AccessLevel: LevelRead}},
		}),
	}
	assert.True(t, CanManageGroups(groups))
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin([]Group{{RoleType: RoleGlobalAdmin}}))
	assert.True(t, IsAdmin([]Group{{RoleType: RoleOperatingUnitAdmin}}))
	assert.False(t, IsAdmin([]Group{{RoleType: RoleViewer}, {RoleType: RoleOrganizationAdmin}}))
	assert.False(t, IsAdmin(nil))
}

func seedDirectory(t *testing.T) (*InMemory, User) {
	t.Helper()
	dir := NewInMemory()
	org, err := dir.AddOrganization(Organization{Name: "Agency", Slug: "agency"})
	require.NoError(t, err)
	unit, err := dir.AddOperatingUnit(OperatingUnit{OrganizationID: org.ID, Name: "Digital Services"})
	require.NoError(t, err)
	group, err := dir.AddGroup(Group{
		Name: "Analysts", Type: GroupCustom, Scope: ScopeOrganization,
		OrganizationID: org.ID,
		Permissions:    []ModulePermission{{ModuleKey: "dashboard", AccessLevel: LevelRead}},
	})
	require.NoError(t, err)
	user, err := dir.AddUser(User{
		Email: "analyst@agency.gov", OperatingUnitID: unit.ID, GroupIDs: []string{group.ID},
	})
	require.NoError(t, err)
	return dir, user
}

func TestResolverMembership(t *testing.T) {
	dir, user := seedDirectory(t)
	r := NewResolver(dir)

	m, err := r.Membership(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, m.User.ID)
	assert.Equal(t, "agency", m.Organization.Slug)
	require.Len(t, m.Groups, 1)
	assert.True(t, r.HasModuleAccess(context.Background(), user.ID, "dashboard"))
	assert.False(t, r.HasModuleAccess(context.Background(), user.ID, "settings"))
}

func TestResolverUnknownUserFailsClosed(t *testing.T) {
	dir, _ := seedDirectory(t)
	r := NewResolver(dir)

	_, err := r.Membership(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, r.HasModuleAccess(context.Background(), "missing", "dashboard"))
	assert.False(t, r.HasFeatureAccess(context.Background(), "missing", ModuleUsersRoles, FeatureCreateUsers))
	assert.False(t, r.HasAccessLevel(context.Background(), "missing", "dashboard", LevelRead))
}

// countingDirectory wraps a Directory and counts user lookups.
type countingDirectory struct {
	Directory
	lookups int
}

func (d *countingDirectory) Users(ctx context.Context) UserStore {
	d.lookups++
	return d.Directory.Users(ctx)
}

func TestResolverCacheTTL(t *testing.T) {
	dir, user := seedDirectory(t)
	counting := &countingDirectory{Directory: dir}

	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	r := NewResolver(counting,
		WithClock(func() time.Time { return now }),
		WithCacheTTL(time.Minute),
	)

	_, err := r.Membership(context.Background(), user.ID)
	require.NoError(t, err)
	_, err = r.Membership(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.lookups, "second call within TTL must hit the cache")

	now = now.Add(2 * time.Minute)
	_, err = r.Membership(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.lookups, "expired entry must be reloaded")

	r.Invalidate(user.ID)
	_, err = r.Membership(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counting.lookups, "invalidated entry must be reloaded")
}

func TestResolverNoCacheByDefault(t *testing.T) {
	dir, user := seedDirectory(t)
	counting := &countingDirectory{Directory: dir}
	r := NewResolver(counting)

	for i := 0; i < 3; i++ {
		_, err := r.Membership(context.Background(), user.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, counting.lookups)
}

func TestResolveMissingHierarchy(t *testing.T) {
	dir := NewInMemory()
	org, err := dir.AddOrganization(Organization{Name: "Agency", Slug: "agency"})
	require.NoError(t, err)
	unit, err := dir.AddOperatingUnit(OperatingUnit{OrganizationID: org.ID, Name: "Unit"})
	require.NoError(t, err)
	user, err := dir.AddUser(User{Email: "a@agency.gov", OperatingUnitID: unit.ID})
	require.NoError(t, err)

	// Break the hierarchy underneath the user.
	dir.mu.Lock()
	delete(dir.units, unit.ID)
	dir.mu.Unlock()

	_, err = Resolve(context.Background(), dir, user.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
