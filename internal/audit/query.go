package audit

import (
	"context"
	"sort"
	"strings"
	"time"
)

const defaultPageSize = 50

// Filters narrows a Query. Zero-valued fields match everything.
type Filters struct {
	OrganizationID string
	ResourceType   ResourceType
	ResourceID     string
	Action         string
	ActorID        string
	Start          time.Time
	End            time.Time
	Page           int
	PageSize       int
}

func (f Filters) matches(e Entry) bool {
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Page is one page of query results.
type Page struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// Query reads persisted entries matching the filters, newest first.
// Buffered entries are not visible until flushed.
func (l *Logger) Query(ctx context.Context, f Filters) (Page, error) {
	all, err := l.store.ReadAll(ctx)
	if err != nil {
		return Page{}, err
	}

	matched := make([]Entry, 0, len(all))
	for _, e := range all {
		if f.matches(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		// Deterministic tie-break so pagination stays stable.
		return strings.Compare(matched[i].ID, matched[j].ID) > 0
	})

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	total := len(matched)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return Page{
		Entries:    matched[start:end],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

// ActorActivity summarizes one actor's footprint in the log.
type ActorActivity struct {
	ActorID    string `json:"actorId"`
	ActorEmail string `json:"actorEmail"`
	Count      int    `json:"count"`
}

// Stats aggregates an organization's audit trail.
type Stats struct {
	TotalActions      int                  `json:"totalActions"`
	ActionsByType     map[string]int       `json:"actionsByType"`
	ActionsByResource map[ResourceType]int `json:"actionsByResource"`
	RecentActivity    int                  `json:"recentActivity"`
	TopActors         []ActorActivity      `json:"topActors"`
}

const topActorLimit = 10

// Statistics computes aggregate counters over the persisted entries of
// one organization. RecentActivity counts entries from the last 24h.
func (l *Logger) Statistics(ctx context.Context, orgID string) (Stats, error) {
	all, err := l.store.ReadAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ActionsByType:     make(map[string]int),
		ActionsByResource: make(map[ResourceType]int),
	}
	cutoff := l.now().UTC().Add(-24 * time.Hour)
	byActor := make(map[string]*ActorActivity)

	for _, e := range all {
		if orgID != "" && e.OrganizationID != orgID {
			continue
		}
		stats.TotalActions++
		stats.ActionsByType[e.Action]++
		stats.ActionsByResource[e.ResourceType]++
		if e.Timestamp.After(cutoff) {
			stats.RecentActivity++
		}
		act, ok := byActor[e.ActorID]
		if !ok {
			act = &ActorActivity{ActorID: e.ActorID, ActorEmail: e.ActorEmail}
			byActor[e.ActorID] = act
		}
		act.Count++
	}

	actors := make([]ActorActivity, 0, len(byActor))
	for _, a := range byActor {
		actors = append(actors, *a)
	}
	sort.Slice(actors, func(i, j int) bool {
		if actors[i].Count != actors[j].Count {
			return actors[i].Count > actors[j].Count
		}
		return actors[i].ActorID < actors[j].ActorID
	})
	if len(actors) > topActorLimit {
		actors = actors[:topActorLimit]
	}
	stats.TopActors = actors
	return stats, nil
}

// Cleanup drops partitions older than daysToKeep days. Failing to
// delete one partition does not stop the rest; the first error is
// returned after the sweep completes.
func (l *Logger) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		daysToKeep = 90
	}
	keys, err := l.store.Partitions(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := PartitionKey(l.now().UTC().AddDate(0, 0, -daysToKeep))

	removed := 0
	var firstErr error
	for _, key := range keys {
		if key >= cutoff {
			continue
		}
		if err := l.store.DeletePartition(ctx, key); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}
