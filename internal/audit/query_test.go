package audit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedEntries(t *testing.T, l *Logger, n int, orgID string, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		e := Entry{
			Action:         ActionUserUpdated,
			ResourceType:   ResourceUser,
			ResourceID:     fmt.Sprintf("user-%d", i),
			OrganizationID: orgID,
			ActorID:        fmt.Sprintf("actor-%d", i%3),
			ActorEmail:     fmt.Sprintf("actor-%d@example.gov", i%3),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := l.Log(context.Background(), e); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestQueryExcludesBufferedEntries(t *testing.T) {
	l := newTestLogger(newFakeStore())
	seedEntries(t, l, 3, "org-1", baseTime.Add(-2*time.Hour))

	if err := l.LogUserAction(context.Background(), testActor(), ActionUserUpdated, "org-1", "user-x", nil); err != nil {
		t.Fatalf("log: %v", err)
	}
	page, err := l.Query(context.Background(), Filters{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("total = %d, want 3 (buffered entry must stay invisible)", page.Total)
	}
}

func TestQueryOrderAndPagination(t *testing.T) {
	l := newTestLogger(newFakeStore())
	seedEntries(t, l, 25, "org-1", baseTime.Add(-3*time.Hour))

	first, err := l.Query(context.Background(), Filters{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if first.Total != 25 || first.TotalPages != 3 || len(first.Entries) != 10 {
		t.Fatalf("page = %+v", first)
	}
	for i := 1; i < len(first.Entries); i++ {
		if first.Entries[i].Timestamp.After(first.Entries[i-1].Timestamp) {
			t.Fatalf("entries not sorted newest first at index %d", i)
		}
	}

	// Walking every page yields each entry exactly once.
	seen := make(map[string]bool)
	for p := 1; p <= first.TotalPages; p++ {
		page, err := l.Query(context.Background(), Filters{Page: p, PageSize: 10})
		if err != nil {
			t.Fatalf("query page %d: %v", p, err)
		}
		for _, e := range page.Entries {
			if seen[e.ID] {
				t.Fatalf("entry %s returned twice", e.ID)
			}
			seen[e.ID] = true
		}
	}
	if len(seen) != 25 {
		t.Fatalf("collected %d entries across pages, want 25", len(seen))
	}

	past, err := l.Query(context.Background(), Filters{Page: 99, PageSize: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(past.Entries) != 0 {
		t.Fatalf("page past the end returned %d entries", len(past.Entries))
	}
}

func TestQueryFilters(t *testing.T) {
	l := newTestLogger(newFakeStore())
	seedEntries(t, l, 6, "org-1", baseTime.Add(-2*time.Hour))
	seedEntries(t, l, 4, "org-2", baseTime.Add(-2*time.Hour))

	cases := []struct {
		name    string
		filters Filters
		want    int
	}{
		{"by org", Filters{OrganizationID: "org-2"}, 4},
		{"by actor", Filters{OrganizationID: "org-1", ActorID: "actor-0"}, 2},
		{"by resource id", Filters{ResourceID: "user-3"}, 2},
		{"by action miss", Filters{Action: ActionGroupDeleted}, 0},
		{"by window", Filters{OrganizationID: "org-1", Start: baseTime.Add(-2 * time.Hour), End: baseTime.Add(-118 * time.Minute)}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := l.Query(context.Background(), tc.filters)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if page.Total != tc.want {
				t.Fatalf("total = %d, want %d", page.Total, tc.want)
			}
		})
	}
}

func TestCriticalActionQueryableImmediately(t *testing.T) {
	l := newTestLogger(newFakeStore())

	actor := testActor()
	if err := l.LogGroupAction(context.Background(), actor, ActionGroupDeleted, "org-1", "group-42", nil); err != nil {
		t.Fatalf("log: %v", err)
	}

	// No flush and no delay: the critical entry must already be persisted.
	page, err := l.Query(context.Background(), Filters{ResourceID: "group-42"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}
	e := page.Entries[0]
	if e.Action != ActionGroupDeleted || e.ActorID != actor.ID || e.ActorEmail != actor.Email {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestStatistics(t *testing.T) {
	l := newTestLogger(newFakeStore())
	seedEntries(t, l, 9, "org-1", baseTime.Add(-30*time.Hour))

	actor := testActor()
	if err := l.LogGroupAction(context.Background(), actor, ActionGroupDeleted, "org-1", "grp-1", nil); err != nil {
		t.Fatalf("log: %v", err)
	}

	stats, err := l.Statistics(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalActions != 10 {
		t.Fatalf("total = %d, want 10", stats.TotalActions)
	}
	if stats.ActionsByType[ActionGroupDeleted] != 1 || stats.ActionsByType[ActionUserUpdated] != 9 {
		t.Fatalf("actions by type = %v", stats.ActionsByType)
	}
	if stats.ActionsByResource[ResourceGroup] != 1 {
		t.Fatalf("actions by resource = %v", stats.ActionsByResource)
	}
	// Seeded entries are 30h old; only the group deletion is recent.
	if stats.RecentActivity != 1 {
		t.Fatalf("recent = %d, want 1", stats.RecentActivity)
	}
	if len(stats.TopActors) == 0 || stats.TopActors[0].Count < stats.TopActors[len(stats.TopActors)-1].Count {
		t.Fatalf("top actors not sorted: %v", stats.TopActors)
	}
}

func TestCleanup(t *testing.T) {
	store := newFakeStore()
	l := newTestLogger(store)

	old := Entry{
		Action: ActionUserUpdated, ResourceType: ResourceUser, ResourceID: "user-1",
		OrganizationID: "org-1", ActorID: "actor-1",
		Timestamp: baseTime.AddDate(0, 0, -100),
	}
	fresh := old
	fresh.Timestamp = baseTime
	if err := l.Log(context.Background(), old); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := l.Log(context.Background(), fresh); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	removed, err := l.Cleanup(context.Background(), 90)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if store.stored() != 1 {
		t.Fatalf("stored = %d after cleanup, want 1", store.stored())
	}
}
