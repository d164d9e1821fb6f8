package access

import (
	"context"
	"sync"
	"time"
)

// Module and feature keys the derived predicates depend on.
const (
	ModuleUsersRoles    = "usersRoles"
	FeatureCreateUsers  = "create_users"
	FeatureManageGroups = "manage_groups"
)

// EffectiveModulePermissions computes the per-module access level for a set of
// groups: for every module named by any group, the maximum level recorded
// across all of them. Modules absent from every group yield no entry.
func EffectiveModulePermissions(groups []Group) map[string]AccessLevel {
	effective := make(map[string]AccessLevel)
	for _, group := range groups {
		for _, perm := range group.Permissions {
			if current, ok := effective[perm.ModuleKey]; ok {
				effective[perm.ModuleKey] = MaxLevel(current, perm.AccessLevel)
			} else {
				effective[perm.ModuleKey] = perm.AccessLevel
			}
		}
	}
	return effective
}

// HasModuleAccess reports whether the groups grant at least read on a module.
// Unknown module keys resolve to no access.
func HasModuleAccess(groups []Group, moduleKey string) bool {
	return EffectiveModulePermissions(groups)[moduleKey].Meets(LevelRead)
}

// HasFeatureAccess reports whether any single group lists the feature under
// the module with at least read. Features are resolved independently per
// group and are not capped by the module's own level; that asymmetry is the
// product semantic carried over from the dashboard.
func HasFeatureAccess(groups []Group, moduleKey, featureKey string) bool {
	for _, group := range groups {
		for _, perm := range group.Permissions {
			if perm.ModuleKey != moduleKey {
				continue
			}
			for _, feature := range perm.Features {
				if feature.FeatureKey == featureKey && feature.AccessLevel.Meets(LevelRead) {
					return true
				}
			}
		}
	}
	return false
}

// HasAccessLevel reports whether the effective module level meets required.
func HasAccessLevel(groups []Group, moduleKey string, required AccessLevel) bool {
	return EffectiveModulePermissions(groups)[moduleKey].Meets(required)
}

// IsAdmin reports membership in a global or operating-unit admin group.
func IsAdmin(groups []Group) bool {
	for _, group := range groups {
		if group.RoleType == RoleGlobalAdmin || group.RoleType == RoleOperatingUnitAdmin {
			return true
		}
	}
	return false
}

// CanManageUsers combines module access with the create_users feature.
func CanManageUsers(groups []Group) bool {
	return HasModuleAccess(groups, ModuleUsersRoles) &&
		HasFeatureAccess(groups, ModuleUsersRoles, FeatureCreateUsers)
}

// CanManageGroups combines module access with the manage_groups feature.
func CanManageGroups(groups []Group) bool {
	return HasModuleAccess(groups, ModuleUsersRoles) &&
		HasFeatureAccess(groups, ModuleUsersRoles, FeatureManageGroups)
}

const defaultCacheTTL = 5 * time.Minute

// Resolver answers permission questions for users by id, loading membership
// snapshots from the directory. Resolution itself is pure; the resolver adds
// lookup and an optional time-boxed cache.
type Resolver struct {
	dir Directory
	now func() time.Time
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cachedMembership
}

type cachedMembership struct {
	membership *Membership
	expiresAt  time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithCacheTTL enables membership caching for the given duration. Staleness
// never exceeds the TTL; zero disables caching entirely.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = ttl }
}

// NewResolver constructs a Resolver over the directory. Caching is off by
// default; pass WithCacheTTL to opt in.
func NewResolver(dir Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:   dir,
		now:   time.Now,
		cache: make(map[string]cachedMembership),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Membership returns the resolved snapshot for the user, from cache when the
// TTL permits.
func (r *Resolver) Membership(ctx context.Context, userID string) (*Membership, error) {
	if r.ttl > 0 {
		r.mu.Lock()
		if entry, ok := r.cache[userID]; ok && r.now().Before(entry.expiresAt) {
			r.mu.Unlock()
			return entry.membership, nil
		}
		r.mu.Unlock()
	}
	membership, err := Resolve(ctx, r.dir, userID)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[userID] = cachedMembership{membership: membership, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return membership, nil
}

// Invalidate drops the cached snapshot for a user. Call it whenever group
// membership or group permissions change.
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// InvalidateAll drops every cached snapshot, e.g. after a group edit that can
// affect an unknown set of users.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]cachedMembership)
	r.mu.Unlock()
}

// ModulePermissions returns the user's effective per-module levels.
func (r *Resolver) ModulePermissions(ctx context.Context, userID string) (map[string]AccessLevel, error) {
	m, err := r.Membership(ctx, userID)
	if err != nil {
		return nil, err
	}
	return EffectiveModulePermissions(m.Groups), nil
}

// HasModuleAccess answers for a user id; lookup failures fail closed.
func (r *Resolver) HasModuleAccess(ctx context.Context, userID, moduleKey string) bool {
	m, err := r.Membership(ctx, userID)
	if err != nil {
		return false
	}
	return HasModuleAccess(m.Groups, moduleKey)
}

// HasFeatureAccess answers for a user id; lookup failures fail closed.
func (r *Resolver) HasFeatureAccess(ctx context.Context, userID, moduleKey, featureKey string) bool {
	m, err := r.Membership(ctx, userID)
	if err != nil {
		return false
	}
	return HasFeatureAccess(m.Groups, moduleKey, featureKey)
}

// HasAccessLevel answers for a user id; lookup failures fail closed.
func (r *Resolver) HasAccessLevel(ctx context.Context, userID, moduleKey string, required AccessLevel) bool {
	m, err := r.Membership(ctx, userID)
	if err != nil {
		return false
	}
	return HasAccessLevel(m.Groups, moduleKey, required)
}
