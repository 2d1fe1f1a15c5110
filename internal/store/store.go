// Package store provides durable persistence for polipulse.
//
// The Store keeps a fast in-memory mirror of every collection and is
// the sole source of truth for synchronous reads. Durable copies live
// in two tiers: a primary SQLite key-value tier and a best-effort
// legacy JSON blob with a hard size ceiling. Every mutation updates the
// mirror synchronously and queues an asynchronous write-through; a
// durable-tier outage never makes the mirror unavailable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/model"
)

// Collection names in the primary tier.
const (
	colEntities   = "entities"
	colFeed       = "feed"
	colSources    = "sources"
	colDiscovered = "discovered"
	colSchedule   = "schedule"
)

// SnapshotVersion is the export-format version key.
const SnapshotVersion = 1

// ErrNotFound is returned by lookups for unknown identities.
var ErrNotFound = errors.New("not found")

// Snapshot is the full serialized form of every collection. It doubles
// as the export/import document and the legacy-tier blob layout.
type Snapshot struct {
	Version    int                      `json:"version"`
	Entities   []model.Entity           `json:"entities"`
	Feed       []model.FeedEvent        `json:"feed"`
	Sources    []model.Source           `json:"sources"`
	Discovered []model.DiscoveredSource `json:"discovered"`
	Schedule   model.ScheduleState      `json:"schedule"`
}

// Options configures the durable tiers. Zero-value paths disable the
// corresponding tier (the store then runs purely in memory).
type Options struct {
	DatabasePath   string
	LegacyPath     string
	LegacyMaxBytes int
}

// Store owns the in-memory mirror and both durable tiers.
// Thread-safety: all exported methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data Snapshot

	db     *sqliteTier // nil when the primary tier is unavailable
	legacy *legacyTier // nil when no legacy path was configured

	saveCh chan struct{}
	done   chan struct{}
	ready  chan struct{}
	wg     sync.WaitGroup
}

// Open initializes the store. It never fails: a durable-tier failure is
// logged and the store falls open to in-memory defaults.
func Open(opts Options) *Store {
	s := &Store{
		saveCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}

	if opts.DatabasePath != "" {
		db, err := openSQLite(opts.DatabasePath)
		if err != nil {
			logging.Error("primary tier unavailable, running non-durably", "error", err)
		} else {
			s.db = db
		}
	}
	if opts.LegacyPath != "" {
		s.legacy = newLegacyTier(opts.LegacyPath, opts.LegacyMaxBytes)
	}

	s.load()
	close(s.ready)

	s.wg.Add(1)
	go s.writeLoop()

	return s
}

// load populates the mirror from the primary tier, migrating from the
// legacy tier when the primary is empty, and falling back to defaults
// when both are unavailable.
func (s *Store) load() {
	s.data = defaultSnapshot()

	if s.db != nil {
		n, err := s.db.Count()
		if err != nil {
			logging.Error("primary tier read failed", "error", err)
		} else if n > 0 {
			if snap, err := s.readPrimary(); err != nil {
				logging.Error("primary tier load failed", "error", err)
			} else {
				s.data = *snap
				return
			}
		}
	}

	// Primary empty or unavailable: migrate from the legacy tier.
	// The legacy copy is never deleted here - copy, then continue.
	if s.legacy != nil {
		snap, err := s.legacy.Read()
		if err != nil {
			logging.Warn("legacy tier load failed", "error", err)
			return
		}
		if snap != nil {
			logging.Info("migrating legacy tier into primary",
				"entities", len(snap.Entities), "events", len(snap.Feed))
			s.data = *snap
			s.data.Version = SnapshotVersion
			s.writePrimary(s.snapshotLocked())
		}
	}
}

func defaultSnapshot() Snapshot {
	return Snapshot{
		Version:  SnapshotVersion,
		Sources:  model.DefaultSources(),
		Schedule: model.DefaultSchedule(),
	}
}

// readPrimary reassembles a snapshot from the primary tier.
func (s *Store) readPrimary() (*Snapshot, error) {
	snap := defaultSnapshot()
	snap.Sources = nil

	if err := readCollection(s.db, colEntities, &snap.Entities); err != nil {
		return nil, err
	}
	if err := readCollection(s.db, colFeed, &snap.Feed); err != nil {
		return nil, err
	}
	if err := readCollection(s.db, colSources, &snap.Sources); err != nil {
		return nil, err
	}
	if err := readCollection(s.db, colDiscovered, &snap.Discovered); err != nil {
		return nil, err
	}

	rows, err := s.db.ReadCollection(colSchedule)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := json.Unmarshal(rows[0], &snap.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
	}

	// Feed order is authoritative by timestamp, not by row position
	sort.SliceStable(snap.Feed, func(i, j int) bool {
		return snap.Feed[i].Timestamp.Before(snap.Feed[j].Timestamp)
	})

	return &snap, nil
}

func readCollection[T any](db *sqliteTier, name string, out *[]T) error {
	rows, err := db.ReadCollection(name)
	if err != nil {
		return err
	}
	for _, row := range rows {
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return fmt.Errorf("decode %s record: %w", name, err)
		}
		*out = append(*out, item)
	}
	return nil
}

// writeLoop is the background durable writer. Mutations coalesce into a
// single pending save signal.
func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.saveCh:
			s.Save()
		}
	}
}

// scheduleSave queues a fire-and-forget durable write.
func (s *Store) scheduleSave() {
	select {
	case s.saveCh <- struct{}{}:
	default: // a save is already pending
	}
}

// WaitForReady returns once the durable tiers have finished
// initializing. Callers needing durability guarantees before bulk
// operations must await this.
func (s *Store) WaitForReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshotLocked copies the mirror. Caller must hold s.mu (read lock
// is sufficient).
func (s *Store) snapshotLocked() *Snapshot {
	snap := s.data
	snap.Entities = append([]model.Entity(nil), s.data.Entities...)
	snap.Feed = append([]model.FeedEvent(nil), s.data.Feed...)
	snap.Sources = append([]model.Source(nil), s.data.Sources...)
	snap.Discovered = append([]model.DiscoveredSource(nil), s.data.Discovered...)
	return &snap
}

// Save writes the full mirror to the primary tier collection-by-
// collection and best-effort writes a capped summary to the legacy
// tier. Every tier failure is logged and swallowed.
func (s *Store) Save() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	s.writePrimary(snap)

	if s.legacy != nil {
		if err := s.legacy.Write(snap); err != nil {
			if errors.Is(err, ErrLegacyQuota) {
				logging.Warn("legacy backup skipped, blob over size ceiling")
			} else {
				logging.Warn("legacy backup failed", "error", err)
			}
		}
	}
}

// writePrimary persists each collection independently so one failing
// collection does not block the others.
func (s *Store) writePrimary(snap *Snapshot) {
	if s.db == nil {
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.db.ReplaceCollection(colEntities, encodeCollection(snap.Entities, func(e model.Entity) string { return e.ID }))
	})
	g.Go(func() error {
		return s.db.ReplaceCollection(colFeed, encodeCollection(snap.Feed, func(ev model.FeedEvent) string { return ev.ID }))
	})
	g.Go(func() error {
		return s.db.ReplaceCollection(colSources, encodeCollection(snap.Sources, func(src model.Source) string { return src.Name }))
	})
	g.Go(func() error {
		return s.db.ReplaceCollection(colDiscovered, encodeCollection(snap.Discovered, func(d model.DiscoveredSource) string { return d.Domain }))
	})
	g.Go(func() error {
		data, err := json.Marshal(snap.Schedule)
		if err != nil {
			return err
		}
		return s.db.ReplaceCollection(colSchedule, []record{{Key: "state", Data: data}})
	})

	if err := g.Wait(); err != nil {
		logging.Error("primary tier write failed", "error", err)
	}
}

func encodeCollection[T any](items []T, key func(T) string) []record {
	records := make([]record, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			logging.Error("encode record failed", "error", err)
			continue
		}
		records = append(records, record{Key: key(item), Data: data})
	}
	return records
}

// Flush performs a synchronous durable write of the current mirror.
func (s *Store) Flush() {
	s.Save()
}

// Close stops the background writer, flushes once, and closes the
// primary tier.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
	s.Save()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logging.Error("close primary tier", "error", err)
		}
	}
}

// --- Entities ---

// Entities returns a copy of the tracked entities.
func (s *Store) Entities() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Entity(nil), s.data.Entities...)
}

// GetEntity looks up one entity by stable id.
func (s *Store) GetEntity(id string) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.data.Entities {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Entity{}, ErrNotFound
}

// AddEntity inserts an entity. Adding an id that already exists is a
// no-op, not an error. Display-name collisions are accepted but logged
// for manual review - dedup is by stable id only.
func (s *Store) AddEntity(e model.Entity) bool {
	s.mu.Lock()
	for _, existing := range s.data.Entities {
		if existing.ID == e.ID {
			s.mu.Unlock()
			return false
		}
		if existing.Name == e.Name {
			logging.Warn("entity name collision", "name", e.Name, "existing_id", existing.ID, "new_id", e.ID)
		}
	}
	s.data.Entities = append(s.data.Entities, e)
	s.mu.Unlock()

	s.scheduleSave()
	return true
}

// UpdateEntity replaces an entity by id.
func (s *Store) UpdateEntity(e model.Entity) error {
	s.mu.Lock()
	found := false
	for i := range s.data.Entities {
		if s.data.Entities[i].ID == e.ID {
			s.data.Entities[i] = e
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrNotFound
	}
	s.scheduleSave()
	return nil
}

// RemoveEntity deletes an entity by id. Removing an unknown id is a
// no-op.
func (s *Store) RemoveEntity(id string) bool {
	s.mu.Lock()
	removed := false
	for i := range s.data.Entities {
		if s.data.Entities[i].ID == id {
			s.data.Entities = append(s.data.Entities[:i], s.data.Entities[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.scheduleSave()
	}
	return removed
}

// SetEntities replaces the whole collection.
func (s *Store) SetEntities(entities []model.Entity) {
	s.mu.Lock()
	s.data.Entities = append([]model.Entity(nil), entities...)
	s.mu.Unlock()
	s.scheduleSave()
}

// --- Feed events ---

// FeedEvents returns a copy of the feed, oldest first.
func (s *Store) FeedEvents() []model.FeedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.FeedEvent(nil), s.data.Feed...)
}

// AddFeedEvent appends one event. Events are append-only; a duplicate
// id is a no-op.
func (s *Store) AddFeedEvent(ev model.FeedEvent) bool {
	s.mu.Lock()
	for _, existing := range s.data.Feed {
		if existing.ID == ev.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.data.Feed = append(s.data.Feed, ev)
	s.mu.Unlock()

	s.scheduleSave()
	return true
}

// SetFeedEvents replaces the whole feed.
func (s *Store) SetFeedEvents(events []model.FeedEvent) {
	s.mu.Lock()
	s.data.Feed = append([]model.FeedEvent(nil), events...)
	s.mu.Unlock()
	s.scheduleSave()
}

// --- Sources ---

// Sources returns a copy of the source descriptors.
func (s *Store) Sources() []model.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Source(nil), s.data.Sources...)
}

// SetSources replaces the source collection.
func (s *Store) SetSources(sources []model.Source) {
	s.mu.Lock()
	s.data.Sources = append([]model.Source(nil), sources...)
	s.mu.Unlock()
	s.scheduleSave()
}

// AddSource inserts a source by natural key (name). Duplicate names
// are a no-op.
func (s *Store) AddSource(src model.Source) bool {
	s.mu.Lock()
	for _, existing := range s.data.Sources {
		if existing.Name == src.Name {
			s.mu.Unlock()
			return false
		}
	}
	s.data.Sources = append(s.data.Sources, src)
	s.mu.Unlock()

	s.scheduleSave()
	return true
}

// --- Discovered sources ---

// Discovered returns a copy of the discovery records.
func (s *Store) Discovered() []model.DiscoveredSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.DiscoveredSource(nil), s.data.Discovered...)
}

// UpsertDiscovered inserts or updates a discovery record keyed by
// domain. Terminal records (accepted or rejected) are never reopened.
func (s *Store) UpsertDiscovered(d model.DiscoveredSource) {
	s.mu.Lock()
	updated := false
	for i := range s.data.Discovered {
		if s.data.Discovered[i].Domain == d.Domain {
			if s.data.Discovered[i].Terminal() {
				s.mu.Unlock()
				return
			}
			s.data.Discovered[i] = d
			updated = true
			break
		}
	}
	if !updated {
		s.data.Discovered = append(s.data.Discovered, d)
	}
	s.mu.Unlock()

	s.scheduleSave()
}

// SetDiscovered replaces the discovery collection.
func (s *Store) SetDiscovered(discovered []model.DiscoveredSource) {
	s.mu.Lock()
	s.data.Discovered = append([]model.DiscoveredSource(nil), discovered...)
	s.mu.Unlock()
	s.scheduleSave()
}

// --- Schedule ---

// Schedule returns the current schedule state.
func (s *Store) Schedule() model.ScheduleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Schedule
}

// SetSchedule replaces the schedule state.
func (s *Store) SetSchedule(st model.ScheduleState) {
	s.mu.Lock()
	s.data.Schedule = st
	s.mu.Unlock()
	s.scheduleSave()
}

// --- Export / import / clear ---

// ExportAll serializes every collection into a single versioned JSON
// document.
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	snap.Version = SnapshotVersion
	return json.MarshalIndent(snap, "", "  ")
}

// ImportAll fully replaces in-memory state from an exported document
// and triggers a save. Invalid blobs fail with a parse error and leave
// existing state untouched.
func (s *Store) ImportAll(blob []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return fmt.Errorf("parse import document: %w", err)
	}
	for _, required := range []string{"version", "entities", "feed", "sources", "discovered", "schedule"} {
		if _, ok := raw[required]; !ok {
			return fmt.Errorf("import document missing %q", required)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("parse import document: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported import version %d", snap.Version)
	}

	s.mu.Lock()
	s.data = snap
	s.mu.Unlock()

	s.scheduleSave()
	return nil
}

// ClearAll resets every collection to empty defaults in the mirror and
// both durable tiers.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.data = defaultSnapshot()
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Clear(); err != nil {
			logging.Error("clear primary tier", "error", err)
		}
	}
	if s.legacy != nil {
		if err := s.legacy.Clear(); err != nil {
			logging.Warn("clear legacy tier", "error", err)
		}
	}
	s.Save()
}

// Counts reports per-collection sizes for status display.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		colEntities:   len(s.data.Entities),
		colFeed:       len(s.data.Feed),
		colSources:    len(s.data.Sources),
		colDiscovered: len(s.data.Discovered),
	}
}

// LatestEventFor returns the most recent feed event for an entity, or
// ErrNotFound.
func (s *Store) LatestEventFor(entityID string) (model.FeedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.data.Feed) - 1; i >= 0; i-- {
		if s.data.Feed[i].EntityID == entityID {
			return s.data.Feed[i], nil
		}
	}
	return model.FeedEvent{}, ErrNotFound
}

// EventsSince returns feed events at or after the given time.
func (s *Store) EventsSince(since time.Time) []model.FeedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.FeedEvent
	for _, ev := range s.data.Feed {
		if !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out
}
