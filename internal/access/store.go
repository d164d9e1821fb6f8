package access

import "context"

// Directory provides read access to the tenant hierarchy. Mutations happen in
// the surrounding CRUD layer; the resolvers only ever read.
type Directory interface {
	Organizations(ctx context.Context) OrganizationStore
	OperatingUnits(ctx context.Context) OperatingUnitStore
	Groups(ctx context.Context) GroupStore
	Users(ctx context.Context) UserStore
}

// OrganizationStore reads organizations.
type OrganizationStore interface {
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// OperatingUnitStore reads operating units.
type OperatingUnitStore interface {
	Find(ctx context.Context, id string) (*OperatingUnit, error)
	ListByOrg(ctx context.Context, orgID string) ([]*OperatingUnit, error)
}

// GroupStore reads groups.
type GroupStore interface {
	Find(ctx context.Context, id string) (*Group, error)
	FindMany(ctx context.Context, ids []string) ([]*Group, error)
	ListByOrg(ctx context.Context, orgID string) ([]*Group, error)
}

// UserStore reads users.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Resolve loads a user together with its operating unit, organization and
// groups. Missing hierarchy records surface as ErrNotFound: a user whose unit
// or organization is gone cannot be granted anything.
func Resolve(ctx context.Context, dir Directory, userID string) (*Membership, error) {
	user, err := dir.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	unit, err := dir.OperatingUnits(ctx).Find(ctx, user.OperatingUnitID)
	if err != nil {
		return nil, err
	}
	org, err := dir.Organizations(ctx).Find(ctx, unit.OrganizationID)
	if err != nil {
		return nil, err
	}
	groups, err := dir.Groups(ctx).FindMany(ctx, user.GroupIDs)
	if err != nil {
		return nil, err
	}
	m := &Membership{
		User:          *user,
		OperatingUnit: *unit,
		Organization:  *org,
	}
	for _, g := range groups {
		m.Groups = append(m.Groups, *g)
	}
	return m, nil
}
