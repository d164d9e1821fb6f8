package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

var _ Directory = (*PGDirectory)(nil)

// PGDirectory implements Directory using PostgreSQL. Group permissions are
// stored as a jsonb document per group.
type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(db *sql.DB) *PGDirectory {
	return &PGDirectory{db: db}
}

func (d *PGDirectory) Organizations(ctx context.Context) OrganizationStore {
	return &pgOrgStore{db: d.db}
}
func (d *PGDirectory) OperatingUnits(ctx context.Context) OperatingUnitStore {
	return &pgUnitStore{db: d.db}
}
func (d *PGDirectory) Groups(ctx context.Context) GroupStore { return &pgGroupStore{db: d.db} }
func (d *PGDirectory) Users(ctx context.Context) UserStore   { return &pgUserStore{db: d.db} }

// Organization store -------------------------------------------------------
type pgOrgStore struct{ db *sql.DB }

func (s *pgOrgStore) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, slug, domains, status, settings, created_at, updated_at, created_by
		 from organizations where id=$1`, id)
	return scanOrganization(row)
}

func (s *pgOrgStore) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, slug, domains, status, settings, created_at, updated_at, created_by
		 from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, org)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*Organization, error) {
	var (
		org      Organization
		domains  []byte
		settings []byte
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &domains, &org.Status, &settings,
		&org.CreatedAt, &org.UpdatedAt, &org.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(domains, &org.Domains)
	_ = json.Unmarshal(settings, &org.Settings)
	return &org, nil
}

// Operating unit store -----------------------------------------------------
type pgUnitStore struct{ db *sql.DB }

func (s *pgUnitStore) Find(ctx context.Context, id string) (*OperatingUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, domains, description, created_at, updated_at
		 from operating_units where id=$1`, id)
	return scanUnit(row)
}

func (s *pgUnitStore) ListByOrg(ctx context.Context, orgID string) ([]*OperatingUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, organization_id, name, domains, description, created_at, updated_at
		 from operating_units where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*OperatingUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func scanUnit(row rowScanner) (*OperatingUnit, error) {
	var (
		unit    OperatingUnit
		domains []byte
	)
	if err := row.Scan(&unit.ID, &unit.OrganizationID, &unit.Name, &domains,
		&unit.Description, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(domains, &unit.Domains)
	return &unit, nil
}

// Group store --------------------------------------------------------------
type pgGroupStore struct{ db *sql.DB }

const groupColumns = `id, name, type, role_type, organization_id, operating_unit_id,
	scope, permissions, description, is_system_group, created_at, updated_at, created_by`

func (s *pgGroupStore) Find(ctx context.Context, id string) (*Group, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+groupColumns+` from groups where id=$1`, id)
	return scanGroup(row)
}

func (s *pgGroupStore) FindMany(ctx context.Context, groupIDs []string) ([]*Group, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	ids, _ := json.Marshal(groupIDs)
	rows, err := s.db.QueryContext(ctx,
		`select `+groupColumns+` from groups
		 where id in (select value from jsonb_array_elements_text($1::jsonb) as t(value))`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (s *pgGroupStore) ListByOrg(ctx context.Context, orgID string) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+groupColumns+` from groups where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGroups(rows)
}

func collectGroups(rows *sql.Rows) ([]*Group, error) {
	var groups []*Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func scanGroup(row rowScanner) (*Group, error) {
	var (
		group       Group
		roleType    sql.NullString
		unitID      sql.NullString
		permissions []byte
	)
	if err := row.Scan(&group.ID, &group.Name, &group.Type, &roleType, &group.OrganizationID,
		&unitID, &group.Scope, &permissions, &group.Description, &group.IsSystemGroup,
		&group.CreatedAt, &group.UpdatedAt, &group.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	group.RoleType = RoleType(roleType.String)
	group.OperatingUnitID = unitID.String
	if err := json.Unmarshal(permissions, &group.Permissions); err != nil {
		return nil, fmt.Errorf("decode group %s permissions: %w", group.ID, err)
	}
	return &group, nil
}

// User store ---------------------------------------------------------------
type pgUserStore struct{ db *sql.DB }

const userColumns = `id, email, first_name, last_name, operating_unit_id, group_ids,
	status, created_at, updated_at, created_by`

func (s *pgUserStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *pgUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user     User
		groupIDs []byte
	)
	if err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.OperatingUnitID, &groupIDs, &user.Status,
		&user.CreatedAt, &user.UpdatedAt, &user.CreatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(groupIDs, &user.GroupIDs)
	return &user, nil
}
