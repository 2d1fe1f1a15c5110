package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s := Open(Options{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	t.Cleanup(s.Close)
	return s
}

func entity(id, name string) model.Entity {
	return model.Entity{
		ID:    id,
		Name:  name,
		Role:  "Senator",
		Score: model.BaselineScore,
	}
}

func TestAddEntityDuplicateIDIsNoOp(t *testing.T) {
	s := memStore(t)

	if !s.AddEntity(entity("e1", "Jane Doe")) {
		t.Fatal("first add rejected")
	}
	if s.AddEntity(entity("e1", "Jane Doe")) {
		t.Error("duplicate id accepted")
	}
	if got := len(s.Entities()); got != 1 {
		t.Errorf("entity count = %d, want 1", got)
	}

	// Name collisions with distinct ids are accepted.
	if !s.AddEntity(entity("e2", "Jane Doe")) {
		t.Error("distinct id with colliding name rejected")
	}
}

func TestUpdateAndRemoveEntity(t *testing.T) {
	s := memStore(t)
	s.AddEntity(entity("e1", "Jane Doe"))

	e, err := s.GetEntity("e1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	e.Score = 115
	if err := s.UpdateEntity(e); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if got, _ := s.GetEntity("e1"); got.Score != 115 {
		t.Errorf("score = %v after update, want 115", got.Score)
	}

	if err := s.UpdateEntity(entity("ghost", "Ghost")); err != ErrNotFound {
		t.Errorf("updating unknown id = %v, want ErrNotFound", err)
	}

	if !s.RemoveEntity("e1") {
		t.Error("remove of known id failed")
	}
	if s.RemoveEntity("e1") {
		t.Error("remove of already-removed id reported success")
	}
	if _, err := s.GetEntity("e1"); err != ErrNotFound {
		t.Errorf("GetEntity after removal = %v, want ErrNotFound", err)
	}
}

func TestFeedEventsAppendOnlyDedup(t *testing.T) {
	s := memStore(t)

	ev := model.FeedEvent{ID: "f1", EntityID: "e1", Headline: "first", Timestamp: time.Now()}
	if !s.AddFeedEvent(ev) {
		t.Fatal("first event rejected")
	}
	if s.AddFeedEvent(ev) {
		t.Error("duplicate event id accepted")
	}
	if got := len(s.FeedEvents()); got != 1 {
		t.Errorf("feed length = %d, want 1", got)
	}
}

func TestLatestEventFor(t *testing.T) {
	s := memStore(t)
	now := time.Now()
	s.AddFeedEvent(model.FeedEvent{ID: "f1", EntityID: "e1", Headline: "old", Timestamp: now.Add(-time.Hour)})
	s.AddFeedEvent(model.FeedEvent{ID: "f2", EntityID: "e2", Headline: "other", Timestamp: now})
	s.AddFeedEvent(model.FeedEvent{ID: "f3", EntityID: "e1", Headline: "new", Timestamp: now})

	ev, err := s.LatestEventFor("e1")
	if err != nil {
		t.Fatalf("LatestEventFor: %v", err)
	}
	if ev.ID != "f3" {
		t.Errorf("latest event = %q, want f3", ev.ID)
	}
	if _, err := s.LatestEventFor("nobody"); err != ErrNotFound {
		t.Errorf("unknown entity = %v, want ErrNotFound", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "roundtrip.db")

	s := Open(Options{DatabasePath: dbPath})
	s.AddEntity(entity("e1", "Jane Doe"))
	s.AddFeedEvent(model.FeedEvent{ID: "f1", EntityID: "e1", Headline: "won debate", Timestamp: time.Now()})
	st := s.Schedule()
	st.RunCount = 7
	s.SetSchedule(st)
	s.Close()

	reopened := Open(Options{DatabasePath: dbPath})
	defer reopened.Close()

	if got := len(reopened.Entities()); got != 1 {
		t.Fatalf("reloaded entity count = %d, want 1", got)
	}
	if got := len(reopened.FeedEvents()); got != 1 {
		t.Fatalf("reloaded feed length = %d, want 1", got)
	}
	if got := reopened.Schedule().RunCount; got != 7 {
		t.Errorf("reloaded run count = %d, want 7", got)
	}
}

func TestLegacyMigration(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.json")

	snap := Snapshot{
		Version:  SnapshotVersion,
		Entities: []model.Entity{entity("e1", "Jane Doe")},
		Feed:     []model.FeedEvent{{ID: "f1", EntityID: "e1", Timestamp: time.Now()}},
		Sources:  model.DefaultSources(),
		Schedule: model.DefaultSchedule(),
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(legacyPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(Options{
		DatabasePath: filepath.Join(dir, "migrated.db"),
		LegacyPath:   legacyPath,
	})
	defer s.Close()

	if got := len(s.Entities()); got != 1 {
		t.Errorf("migrated entity count = %d, want 1", got)
	}
	// Migration copies; the legacy blob must survive.
	if _, err := os.Stat(legacyPath); err != nil {
		t.Errorf("legacy blob removed during migration: %v", err)
	}
}

func TestLegacyQuotaDegradesSilently(t *testing.T) {
	dir := t.TempDir()
	s := Open(Options{
		DatabasePath:   filepath.Join(dir, "quota.db"),
		LegacyPath:     filepath.Join(dir, "legacy.json"),
		LegacyMaxBytes: 16, // nothing fits
	})
	defer s.Close()

	s.AddEntity(entity("e1", "Jane Doe"))
	s.Flush()

	// The quota failure must not disturb the mirror or the primary tier.
	if got := len(s.Entities()); got != 1 {
		t.Errorf("entity count = %d after quota failure, want 1", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "legacy.json")); !os.IsNotExist(err) {
		t.Errorf("over-quota legacy blob was written anyway")
	}
}

func TestLegacyWriteTrimsFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	tier := newLegacyTier(path, DefaultLegacyMaxBytes)

	snap := &Snapshot{Version: SnapshotVersion}
	for i := 0; i < 80; i++ {
		snap.Feed = append(snap.Feed, model.FeedEvent{ID: fmt.Sprintf("f%d", i)})
	}
	if err := tier.Write(snap); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := tier.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Feed) != legacySummaryEvents {
		t.Fatalf("legacy feed length = %d, want trimmed to %d", len(got.Feed), legacySummaryEvents)
	}
	// Most recent events win the trim.
	if got.Feed[len(got.Feed)-1].ID != "f79" {
		t.Errorf("last kept event = %q, want f79", got.Feed[len(got.Feed)-1].ID)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := memStore(t)
	s.AddEntity(entity("e1", "Jane Doe"))
	s.AddFeedEvent(model.FeedEvent{ID: "f1", EntityID: "e1", Headline: "won debate", Timestamp: time.Now()})

	blob, err := s.ExportAll()
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	other := memStore(t)
	if err := other.ImportAll(blob); err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if got := len(other.Entities()); got != 1 {
		t.Errorf("imported entity count = %d, want 1", got)
	}
	if got := len(other.FeedEvents()); got != 1 {
		t.Errorf("imported feed length = %d, want 1", got)
	}
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	s := memStore(t)
	s.AddEntity(entity("e1", "Jane Doe"))

	tests := []struct {
		name string
		blob string
	}{
		{"not JSON", `{{{`},
		{"missing version", `{"entities": [], "feed": [], "sources": [], "discovered": [], "schedule": {}}`},
		{"missing collections", `{"version": 1}`},
		{"missing discovered", `{"version": 1, "entities": [], "feed": [], "sources": [], "schedule": {}}`},
		{"missing schedule", `{"version": 1, "entities": [], "feed": [], "sources": [], "discovered": []}`},
		{"wrong version", `{"version": 99, "entities": [], "feed": [], "sources": [], "discovered": [], "schedule": {}}`},
	}
	for _, tt := range tests {
		if err := s.ImportAll([]byte(tt.blob)); err == nil {
			t.Errorf("%s: import accepted", tt.name)
		}
	}

	// Failed imports leave existing state untouched.
	if got := len(s.Entities()); got != 1 {
		t.Errorf("entity count = %d after rejected imports, want 1", got)
	}
}

func TestImportMissingCollectionPreservesDiscoveredAndSchedule(t *testing.T) {
	s := memStore(t)
	now := time.Now()
	s.UpsertDiscovered(model.DiscoveredSource{Domain: "outlet.example", FirstSeen: now, LastSeen: now, Count: 3})
	st := s.Schedule()
	st.RunCount = 9
	st.IntervalMinutes = 15
	s.SetSchedule(st)

	blob := `{"version": 1, "entities": [], "feed": [], "sources": []}`
	if err := s.ImportAll([]byte(blob)); err == nil {
		t.Fatal("import without discovered/schedule accepted")
	}

	if got := len(s.Discovered()); got != 1 {
		t.Errorf("discovered = %d records after rejected import, want 1", got)
	}
	after := s.Schedule()
	if after.RunCount != 9 || after.IntervalMinutes != 15 {
		t.Errorf("schedule = %+v after rejected import, want run count 9 interval 15", after)
	}
}

func TestClearAll(t *testing.T) {
	s := memStore(t)
	s.AddEntity(entity("e1", "Jane Doe"))
	s.AddFeedEvent(model.FeedEvent{ID: "f1", EntityID: "e1", Timestamp: time.Now()})

	s.ClearAll()

	counts := s.Counts()
	if counts["entities"] != 0 || counts["feed"] != 0 {
		t.Errorf("counts after clear = %v", counts)
	}
	// Defaults come back, not a fully empty store.
	if len(s.Sources()) == 0 {
		t.Error("default sources missing after clear")
	}
}

func TestUpsertDiscoveredRespectsTerminal(t *testing.T) {
	s := memStore(t)
	now := time.Now()

	s.UpsertDiscovered(model.DiscoveredSource{Domain: "outlet.example", FirstSeen: now, LastSeen: now, Count: 1})
	s.UpsertDiscovered(model.DiscoveredSource{Domain: "outlet.example", FirstSeen: now, LastSeen: now, Count: 2})

	got := s.Discovered()
	if len(got) != 1 || got[0].Count != 2 {
		t.Fatalf("discovered = %+v, want one record with count 2", got)
	}

	// Mark terminal, then try to reopen it.
	got[0].Rejected = true
	s.SetDiscovered(got)
	s.UpsertDiscovered(model.DiscoveredSource{Domain: "outlet.example", Count: 9})

	after := s.Discovered()
	if len(after) != 1 || !after[0].Rejected || after[0].Count != 2 {
		t.Errorf("terminal record was reopened: %+v", after)
	}
}

func TestWaitForReady(t *testing.T) {
	s := memStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WaitForReady(ctx); err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
}

func TestOpenWithoutTiersRunsInMemory(t *testing.T) {
	s := Open(Options{})
	defer s.Close()

	s.AddEntity(entity("e1", "Jane Doe"))
	if got := len(s.Entities()); got != 1 {
		t.Errorf("in-memory store entity count = %d, want 1", got)
	}
}
