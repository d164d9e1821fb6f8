package access

import (
	"fmt"
	"strings"
	"time"
)

// Organization is a top-level tenant. The slug is immutable after creation.
type Organization struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Slug      string               `json:"slug"`
	Domains   []string             `json:"domains"`
	Status    string               `json:"status"`
	Settings  OrganizationSettings `json:"settings"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	CreatedBy string               `json:"created_by,omitempty"`
}

// OrganizationSettings carries per-tenant limits and feature flags.
type OrganizationSettings struct {
	AllowCustomGroups bool     `json:"allow_custom_groups"`
	MaxUsers          int      `json:"max_users"`
	MaxOperatingUnits int      `json:"max_operating_units"`
	Features          []string `json:"features,omitempty"`
}

const (
	OrgStatusActive   = "active"
	OrgStatusInactive = "inactive"
	OrgStatusTrial    = "trial"
)

// OperatingUnit is a sub-tenant inside exactly one organization.
type OperatingUnit struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Domains        []string  `json:"domains"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupType distinguishes system-provided role bundles from tenant-defined ones.
type GroupType string

const (
	GroupPredefined GroupType = "predefined"
	GroupCustom     GroupType = "custom"
)

// RoleType names the predefined role a system group realizes.
type RoleType string

const (
	RoleViewer             RoleType = "viewer"
	RoleAdministrator      RoleType = "administrator"
	RoleOperatingUnitAdmin RoleType = "operating_unit_admin"
	RoleRemediatorTester   RoleType = "remediator_tester"
	RoleOrganizationAdmin  RoleType = "organization_admin"
	RoleGlobalAdmin        RoleType = "global_admin"
)

// GroupScope tells whether a group applies organization-wide or to one unit.
type GroupScope string

const (
	ScopeOrganization  GroupScope = "organization"
	ScopeOperatingUnit GroupScope = "operating_unit"
)

// FeaturePermission grants an access level on one feature inside a module.
// A feature not listed in any group resolves to LevelNone.
type FeaturePermission struct {
	FeatureKey  string      `json:"feature_key"`
	AccessLevel AccessLevel `json:"access_level"`
}

// ModulePermission grants a module-wide default level plus per-feature levels.
// Feature levels are resolved independently of the module level.
type ModulePermission struct {
	ModuleKey   string              `json:"module_key"`
	AccessLevel AccessLevel         `json:"access_level"`
	Features    []FeaturePermission `json:"features,omitempty"`
}

// Group is a named, reusable bundle of module and feature permissions.
// Predefined groups cannot be renamed or deleted by tenants.
type Group struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Type            GroupType          `json:"type"`
	RoleType        RoleType           `json:"role_type,omitempty"`
	OrganizationID  string             `json:"organization_id"`
	OperatingUnitID string             `json:"operating_unit_id,omitempty"`
	Scope           GroupScope         `json:"scope"`
	Permissions     []ModulePermission `json:"permissions"`
	Description     string             `json:"description,omitempty"`
	IsSystemGroup   bool               `json:"is_system_group"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	CreatedBy       string             `json:"created_by,omitempty"`
}

// Validate enforces the scope invariants: organization-scoped groups carry no
// operating unit, unit-scoped groups must name one.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.OrganizationID) == "" {
		return fmt.Errorf("%w: group organization_id is required", ErrInvalidInput)
	}
	switch g.Scope {
	case ScopeOrganization:
		if g.OperatingUnitID != "" {
			return fmt.Errorf("%w: organization-scoped group must not reference an operating unit", ErrInvalidInput)
		}
	case ScopeOperatingUnit:
		if g.OperatingUnitID == "" {
			return fmt.Errorf("%w: operating-unit-scoped group requires an operating unit", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown group scope %q", ErrInvalidInput, g.Scope)
	}
	if g.Type == GroupPredefined && g.RoleType == "" {
		return fmt.Errorf("%w: predefined group requires a role type", ErrInvalidInput)
	}
	if g.Type == GroupCustom && g.RoleType != "" {
		return fmt.Errorf("%w: custom group must not carry a role type", ErrInvalidInput)
	}
	return nil
}

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserPending   UserStatus = "pending"
	UserSuspended UserStatus = "suspended"
)

// User belongs to exactly one operating unit; its organization is derived
// through that unit. Group membership is an unordered set.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	OperatingUnitID     string     `json:"operating_unit_id"`
	GroupIDs            []string   `json:"group_ids"`
	Status              UserStatus `json:"status"`
	InvitedBy           string     `json:"invited_by,omitempty"`
	InvitationToken     string     `json:"invitation_token,omitempty"`
	InvitationExpiresAt *time.Time `json:"invitation_expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CreatedBy           string     `json:"created_by,omitempty"`
}

// Membership is a user snapshot with its hierarchy and groups resolved.
// Both resolvers operate on this snapshot, never on raw store records.
type Membership struct {
	User          User
	OperatingUnit OperatingUnit
	Organization  Organization
	Groups        []Group
}

// HasRole reports whether any group in the membership realizes the role.
func (m *Membership) HasRole(role RoleType) bool {
	for _, g := range m.Groups {
		if g.RoleType == role {
			return true
		}
	}
	return false
}
