package scope

import (
	"accessgov.org/internal/access"
)

// Scoped is any resource carrying the two scope ids. Implement it on list
// item types (scans, dashboards, reports, users) to make them filterable.
type Scoped interface {
	ScopeOrganizationID() string
	ScopeOperatingUnitID() string
}

// For computes the data-access scope for a resolved membership:
//   - global admins see everything;
//   - organization admins see their whole organization;
//   - everyone else sees only their own operating unit.
func For(m *access.Membership) DataScope {
	if m.HasRole(access.RoleGlobalAdmin) {
		return DataScope{
			Organizations:  All(),
			OperatingUnits: All(),
			ViewAllInOrg:   true,
		}
	}
	if m.HasRole(access.RoleOrganizationAdmin) {
		return DataScope{
			Organizations:  Subset(m.Organization.ID),
			OperatingUnits: All(),
			ViewAllInOrg:   true,
		}
	}
	return DataScope{
		Organizations:  Subset(m.Organization.ID),
		OperatingUnits: Subset(m.User.OperatingUnitID),
		ViewAllInOrg:   false,
	}
}

// Filter returns the items visible to the membership. It never mutates the
// input and works for any resource kind.
func Filter[T Scoped](items []T, m *access.Membership) []T {
	ds := For(m)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if ds.Admits(item.ScopeOrganizationID(), item.ScopeOperatingUnitID()) {
			out = append(out, item)
		}
	}
	return out
}

// CanAccessOrganization reports whether the membership admits the organization.
func CanAccessOrganization(m *access.Membership, organizationID string) bool {
	return For(m).Organizations.Contains(organizationID)
}

// CanAccessOperatingUnit reports whether the membership admits the unit.
func CanAccessOperatingUnit(m *access.Membership, operatingUnitID string) bool {
	return For(m).OperatingUnits.Contains(operatingUnitID)
}

// Operation names the intent behind a validation check. The decision today
// depends only on scope, not on the operation, but callers record it.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Decision is the outcome of ValidateAccess. Reason is human-readable and
// suitable for a 403 response body.
type Decision struct {
	Allowed bool
	Reason  string
}

// ValidateAccess checks organization access then operating-unit access, in
// that order, short-circuiting on the first failure. It never returns an
// error; the caller owns the user-facing response.
func ValidateAccess(m *access.Membership, resource Scoped, op Operation) Decision {
	if !CanAccessOrganization(m, resource.ScopeOrganizationID()) {
		return Decision{Reason: "user does not have access to this organization"}
	}
	if !CanAccessOperatingUnit(m, resource.ScopeOperatingUnitID()) {
		return Decision{Reason: "user does not have access to this operating unit"}
	}
	return Decision{Allowed: true}
}

// AccessibleOperatingUnits projects the units inside one organization that
// the membership may see. Callers pass the organization's full unit list.
func AccessibleOperatingUnits(m *access.Membership, organizationID string, allUnits []access.OperatingUnit) []access.OperatingUnit {
	ds := For(m)
	if !ds.Organizations.Contains(organizationID) {
		return nil
	}
	var out []access.OperatingUnit
	for _, unit := range allUnits {
		if unit.OrganizationID != organizationID {
			continue
		}
		if ds.ViewAllInOrg || ds.OperatingUnits.Contains(unit.ID) {
			out = append(out, unit)
		}
	}
	return out
}

// AccessibleOrganizations projects the organizations the membership may see.
func AccessibleOrganizations(m *access.Membership, allOrgs []access.Organization) []access.Organization {
	ds := For(m)
	var out []access.Organization
	for _, org := range allOrgs {
		if ds.Organizations.Contains(org.ID) {
			out = append(out, org)
		}
	}
	return out
}
