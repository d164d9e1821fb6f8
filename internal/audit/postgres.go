package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ RecordStore = (*PGStore)(nil)

// PGStore persists audit entries in the audit_log table. Each entry is
// inserted with `on conflict (id) do nothing`, so retrying a partly
// failed flush never duplicates records.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Append writes entries one statement at a time inside a transaction.
// A mid-flight failure rolls everything back; the logger requeues the
// partition and the idempotent insert absorbs the retry overlap.
func (s *PGStore) Append(ctx context.Context, partition string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		var changes []byte
		if len(e.Changes) > 0 {
			changes, err = json.Marshal(e.Changes)
			if err != nil {
				return fmt.Errorf("audit: encode changes for %s: %w", e.ID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			insert into audit_log
				(id, partition_day, action, resource_type, resource_id,
				 organization_id, actor_id, actor_email, changes,
				 ts, ip_address, user_agent)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			on conflict (id) do nothing`,
			e.ID, partition, e.Action, string(e.ResourceType), e.ResourceID,
			e.OrganizationID, e.ActorID, e.ActorEmail, nullableJSON(changes),
			e.Timestamp, nullableText(e.IPAddress), nullableText(e.UserAgent),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadAll loads every stored entry ordered by timestamp then id.
func (s *PGStore) ReadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, action, resource_type, resource_id, organization_id,
		       actor_id, actor_email, changes, ts, ip_address, user_agent
		from audit_log order by ts asc, id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e       Entry
			rt      string
			changes []byte
			ip, ua  sql.NullString
			ts      time.Time
		)
		if err := rows.Scan(&e.ID, &e.Action, &rt, &e.ResourceID, &e.OrganizationID,
			&e.ActorID, &e.ActorEmail, &changes, &ts, &ip, &ua); err != nil {
			return nil, err
		}
		e.ResourceType = ResourceType(rt)
		e.Timestamp = ts.UTC()
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("audit: decode changes for %s: %w", e.ID, err)
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Partitions lists distinct partition days in ascending order.
func (s *PGStore) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct partition_day from audit_log order by partition_day asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeletePartition removes all rows of one partition day.
func (s *PGStore) DeletePartition(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `delete from audit_log where partition_day=$1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSuchPartKey
	}
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
