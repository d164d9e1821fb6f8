package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"accessgov.org/internal/ids"
)

// InMemory implements Directory with in-process concurrency safety. It backs
// tests and single-node deployments without a database.
type InMemory struct {
	mu    sync.RWMutex
	orgs  map[string]*Organization
	units map[string]*OperatingUnit
	grps  map[string]*Group
	users map[string]*User
	now   func() time.Time
}

var _ Directory = (*InMemory)(nil)

// NewInMemory creates an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:  make(map[string]*Organization),
		units: make(map[string]*OperatingUnit),
		grps:  make(map[string]*Group),
		users: make(map[string]*User),
		now:   time.Now,
	}
}

// WithClock overrides the time source used for record timestamps.
func (d *InMemory) WithClock(fn func() time.Time) *InMemory {
	if fn != nil {
		d.now = fn
	}
	return d
}

func (d *InMemory) Organizations(ctx context.Context) OrganizationStore { return memOrgStore{d} }
func (d *InMemory) OperatingUnits(ctx context.Context) OperatingUnitStore {
	return memUnitStore{d}
}
func (d *InMemory) Groups(ctx context.Context) GroupStore { return memGroupStore{d} }
func (d *InMemory) Users(ctx context.Context) UserStore   { return memUserStore{d} }

// AddOrganization inserts an organization, enforcing slug uniqueness.
func (d *InMemory) AddOrganization(org Organization) (Organization, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.TrimSpace(org.Name) == "" || strings.TrimSpace(org.Slug) == "" {
		return Organization{}, fmt.Errorf("%w: organization name and slug are required", ErrInvalidInput)
	}
	for _, existing := range d.orgs {
		if existing.Slug == org.Slug {
			return Organization{}, fmt.Errorf("%w: slug %q", ErrAlreadyExists, org.Slug)
		}
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	if org.Status == "" {
		org.Status = OrgStatusActive
	}
	now := d.now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	d.orgs[org.ID] = &org
	return org, nil
}

// AddOperatingUnit inserts a unit; the owning organization must exist.
func (d *InMemory) AddOperatingUnit(unit OperatingUnit) (OperatingUnit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.orgs[unit.OrganizationID]; !ok {
		return OperatingUnit{}, fmt.Errorf("%w: organization %q", ErrNotFound, unit.OrganizationID)
	}
	if strings.TrimSpace(unit.Name) == "" {
		return OperatingUnit{}, fmt.Errorf("%w: operating unit name is required", ErrInvalidInput)
	}
	if unit.ID == "" {
		unit.ID = ids.New()
	}
	now := d.now().UTC()
	unit.CreatedAt, unit.UpdatedAt = now, now
	d.units[unit.ID] = &unit
	return unit, nil
}

// AddGroup inserts a group after validating its scope invariants. A
// unit-scoped group's unit must live inside the group's organization.
func (d *InMemory) AddGroup(group Group) (Group, error) {
	if err := group.Validate(); err != nil {
		return Group{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.orgs[group.OrganizationID]; !ok {
		return Group{}, fmt.Errorf("%w: organization %q", ErrNotFound, group.OrganizationID)
	}
	if group.Scope == ScopeOperatingUnit {
		unit, ok := d.units[group.OperatingUnitID]
		if !ok {
			return Group{}, fmt.Errorf("%w: operating unit %q", ErrNotFound, group.OperatingUnitID)
		}
		if unit.OrganizationID != group.OrganizationID {
			return Group{}, fmt.Errorf("%w: operating unit %q belongs to a different organization", ErrInvalidInput, group.OperatingUnitID)
		}
	}
	if group.ID == "" {
		group.ID = ids.New()
	}
	now := d.now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	d.grps[group.ID] = &group
	return group, nil
}

// AddUser inserts a user; email must be unique and the unit must exist.
func (d *InMemory) AddUser(user User) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := strings.TrimSpace(strings.ToLower(user.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	for _, existing := range d.users {
		if existing.Email == email {
			return User{}, fmt.Errorf("%w: email %q", ErrAlreadyExists, email)
		}
	}
	if _, ok := d.units[user.OperatingUnitID]; !ok {
		return User{}, fmt.Errorf("%w: operating unit %q", ErrNotFound, user.OperatingUnitID)
	}
	user.Email = email
	if user.ID == "" {
		user.ID = ids.New()
	}
	if user.Status == "" {
		user.Status = UserActive
	}
	now := d.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	d.users[user.ID] = &user
	return user, nil
}

type memOrgStore struct{ d *InMemory }

func (s memOrgStore) Find(ctx context.Context, id string) (*Organization, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	org, ok := s.d.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *org
	return &out, nil
}

func (s memOrgStore) List(ctx context.Context) ([]*Organization, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	out := make([]*Organization, 0, len(s.d.orgs))
	for _, org := range s.d.orgs {
		cp := *org
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUnitStore struct{ d *InMemory }

func (s memUnitStore) Find(ctx context.Context, id string) (*OperatingUnit, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	unit, ok := s.d.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *unit
	return &out, nil
}

func (s memUnitStore) ListByOrg(ctx context.Context, orgID string) ([]*OperatingUnit, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var out []*OperatingUnit
	for _, unit := range s.d.units {
		if unit.OrganizationID == orgID {
			cp := *unit
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memGroupStore struct{ d *InMemory }

func (s memGroupStore) Find(ctx context.Context, id string) (*Group, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	group, ok := s.d.grps[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *group
	return &out, nil
}

func (s memGroupStore) FindMany(ctx context.Context, groupIDs []string) ([]*Group, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var out []*Group
	for _, id := range groupIDs {
		if group, ok := s.d.grps[id]; ok {
			cp := *group
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s memGroupStore) ListByOrg(ctx context.Context, orgID string) ([]*Group, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var out []*Group
	for _, group := range s.d.grps {
		if group.OrganizationID == orgID {
			cp := *group
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUserStore struct{ d *InMemory }

func (s memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	user, ok := s.d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	return &out, nil
}

func (s memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	email = strings.TrimSpace(strings.ToLower(email))
	for _, user := range s.d.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
