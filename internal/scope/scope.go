// Package scope derives which organizations and operating units a user may
// see and filters arbitrary scoped resources accordingly. Every resource kind
// (scans, dashboards, reports, users) goes through the one generic Filter.
package scope

import "sort"

// Selection is either the wildcard ("all") or an explicit id subset. The
// tagged form replaces the old empty-slice-means-everything convention, which
// invited "empty matches nothing" bugs.
type Selection struct {
	all bool
	ids map[string]struct{}
}

// All returns the wildcard selection.
func All() Selection {
	return Selection{all: true}
}

// Subset returns a selection matching exactly the given ids.
func Subset(ids ...string) Selection {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return Selection{ids: set}
}

// IsAll reports whether the selection is the wildcard.
func (s Selection) IsAll() bool { return s.all }

// Contains reports whether the selection admits the id.
func (s Selection) Contains(id string) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// IDs returns the subset ids in sorted order; nil for the wildcard.
func (s Selection) IDs() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DataScope is a user's visibility envelope. ViewAllInOrg marks admins who
// see every operating unit inside their admitted organizations.
type DataScope struct {
	Organizations  Selection
	OperatingUnits Selection
	ViewAllInOrg   bool
}

// Admits applies the visibility rule to one resource: the organization must
// be admitted, and either the user sees the whole organization or the
// operating unit must be admitted too.
func (d DataScope) Admits(organizationID, operatingUnitID string) bool {
	if !d.Organizations.Contains(organizationID) {
		return false
	}
	if d.ViewAllInOrg {
		return true
	}
	return d.OperatingUnits.Contains(operatingUnitID)
}
