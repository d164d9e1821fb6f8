// Package audit buffers tenant-scoped audit records in memory and
// persists them in day partitions through a pluggable RecordStore.
package audit

import (
	"errors"
	"time"
)

// ResourceType identifies the kind of entity an audit entry refers to.
type ResourceType string

const (
	ResourceUser          ResourceType = "user"
	ResourceGroup         ResourceType = "group"
	ResourceOperatingUnit ResourceType = "operating_unit"
	ResourceOrganization  ResourceType = "organization"
)

// Actions recorded by the engine. The set is open; callers may log
// domain-specific actions, but the constants below carry defined
// durability semantics.
const (
	ActionUserCreated   = "user_created"
	ActionUserUpdated   = "user_updated"
	ActionUserDeleted   = "user_deleted"
	ActionUserInvited   = "user_invited"
	ActionUserActivated = "user_activated"

	ActionGroupCreated = "group_created"
	ActionGroupUpdated = "group_updated"
	ActionGroupDeleted = "group_deleted"

	ActionOperatingUnitCreated = "operating_unit_created"
	ActionOperatingUnitUpdated = "operating_unit_updated"
	ActionOperatingUnitDeleted = "operating_unit_deleted"

	ActionOrganizationCreated = "organization_created"
	ActionOrganizationUpdated = "organization_updated"
	ActionOrganizationDeleted = "organization_deleted"

	ActionPermissionChanged = "permission_changed"
	ActionRoleChanged       = "role_changed"
	ActionAccessRevoked     = "access_revoked"
)

// criticalActions are flushed synchronously: Log does not return until
// the entry has been handed to the store, and a store failure is
// surfaced to the caller.
var criticalActions = map[string]struct{}{
	ActionUserDeleted:          {},
	ActionGroupDeleted:         {},
	ActionOrganizationDeleted:  {},
	ActionOperatingUnitDeleted: {},
	ActionPermissionChanged:    {},
	ActionRoleChanged:          {},
	ActionAccessRevoked:        {},
}

// IsCritical reports whether action must be durable before Log returns.
func IsCritical(action string) bool {
	_, ok := criticalActions[action]
	return ok
}

// Change captures a single field transition inside an audited mutation.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Entry is one immutable audit record.
type Entry struct {
	ID             string            `json:"id"`
	Action         string            `json:"action"`
	ResourceType   ResourceType      `json:"resourceType"`
	ResourceID     string            `json:"resourceId"`
	OrganizationID string            `json:"organizationId"`
	ActorID        string            `json:"actorId"`
	ActorEmail     string            `json:"actorEmail"`
	Changes        map[string]Change `json:"changes,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	UserAgent      string            `json:"userAgent,omitempty"`
}

var (
	ErrInvalidEntry  = errors.New("audit: invalid entry")
	ErrLoggerClosed  = errors.New("audit: logger closed")
	ErrFlushTimeout  = errors.New("audit: flush timed out")
	ErrNoSuchPartKey = errors.New("audit: unknown partition")
)

// validate checks the fields every entry must carry before buffering.
func (e Entry) validate() error {
	if e.Action == "" || e.ResourceType == "" || e.ResourceID == "" {
		return ErrInvalidEntry
	}
	if e.OrganizationID == "" || e.ActorID == "" {
		return ErrInvalidEntry
	}
	return nil
}

// PartitionKey returns the UTC day bucket an entry belongs to.
func PartitionKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
