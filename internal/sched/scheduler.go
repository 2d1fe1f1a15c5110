// Package sched drives the recurring polling loop: iterate every
// tracked entity, pull one fresh event through the active backend,
// persist the result, and record run metadata.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/model"
	"github.com/nvaughn/polipulse/internal/provider"
	"github.com/nvaughn/polipulse/internal/store"
)

// interEntityDelay paces backend calls within one tick. Entities are
// processed sequentially, never concurrently, to stay under third-party
// rate limits.
const interEntityDelay = 2 * time.Second

// TickResult summarizes one polling batch.
type TickResult struct {
	Processed int
	Updated   int
	Failed    int
}

// providerSource lets tests inject a fake backend. The default is the
// cached factory keyed by live configuration.
type providerSource func() provider.Provider

// Scheduler runs the polling loop. States: stopped -> running, with
// ticks executing inside running. Manual and timer-driven ticks share
// one code path.
type Scheduler struct {
	store   *store.Store
	getProv providerSource
	limiter *rate.Limiter

	mu      sync.Mutex // guards running / stop
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	tickMu sync.Mutex // serializes ticks across trigger sources

	onEvent    func(model.FeedEvent)
	onSchedule func(model.ScheduleState)
}

// New builds a scheduler reading the live provider configuration
// through cfg on every tick, so settings changes take effect without a
// restart.
func New(st *store.Store, factory *provider.Factory, cfg func() config.ProviderConfig) *Scheduler {
	return newWithProvider(st, func() provider.Provider {
		return factory.Get(cfg())
	})
}

func newWithProvider(st *store.Store, getProv providerSource) *Scheduler {
	return &Scheduler{
		store:   st,
		getProv: getProv,
		limiter: rate.NewLimiter(rate.Every(interEntityDelay), 1),
	}
}

// OnEvent registers the callback invoked for every persisted event.
func (s *Scheduler) OnEvent(fn func(model.FeedEvent)) {
	s.onEvent = fn
}

// OnScheduleUpdate registers the callback invoked after each tick's
// schedule-state write.
func (s *Scheduler) OnScheduleUpdate(fn func(model.ScheduleState)) {
	s.onSchedule = fn
}

// Running reports the current state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start moves stopped -> running, performs one immediate tick, then
// arms the recurring timer. Calling Start while already running is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	st := s.store.Schedule()
	st.Enabled = true
	s.store.SetSchedule(st)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Immediate tick before arming the timer
		s.Tick(ctx)

		ticker := time.NewTicker(s.store.Schedule().Interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.deactivate()
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// deactivate returns to stopped from inside the run goroutine when its
// context is cancelled, so Running() and the stored Enabled flag do not
// misreport until an explicit Stop.
func (s *Scheduler) deactivate() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	st := s.store.Schedule()
	st.Enabled = false
	s.store.SetSchedule(st)
}

// Stop disarms the timer and returns to stopped. An in-flight tick
// finishes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	st := s.store.Schedule()
	st.Enabled = false
	s.store.SetSchedule(st)
}

// SetInterval re-arms the timer with a new period. While running this
// is stop-then-start, so there is no double-fire window.
func (s *Scheduler) SetInterval(ctx context.Context, minutes int) {
	wasRunning := s.Running()
	if wasRunning {
		s.Stop()
	}

	st := s.store.Schedule()
	st.IntervalMinutes = minutes
	s.store.SetSchedule(st)

	if wasRunning {
		s.Start(ctx)
	}
}

// FetchNow triggers an out-of-band tick. Shares the exact tick logic
// and state updates with the timer path.
func (s *Scheduler) FetchNow(ctx context.Context) TickResult {
	return s.Tick(ctx)
}

// Tick runs one polling batch. Entities are processed sequentially
// with a fixed inter-entity delay; one entity's failure never aborts
// the batch. After the batch the schedule state is updated atomically.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var res TickResult

	p := s.getProv()
	if !p.IsConfigured() {
		logging.Warn("tick skipped, provider not configured", "provider", p.Name())
		s.finishTick()
		return res
	}

	entities := s.store.Entities()
	logging.Info("tick started", "provider", p.Name(), "entities", len(entities))

	for _, entity := range entities {
		if ctx.Err() != nil {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		res.Processed++
		if err := s.pollEntity(ctx, p, entity); err != nil {
			logging.Warn("entity poll failed", "entity", entity.Name, "error", err)
			res.Failed++
			continue
		}
		res.Updated++
	}

	s.finishTick()
	logging.Info("tick finished", "processed", res.Processed, "updated", res.Updated, "failed", res.Failed)
	return res
}

// pollEntity fetches one fresh event and applies it to the entity.
// A nil event ("nothing qualifying found") counts as success with no
// update.
func (s *Scheduler) pollEntity(ctx context.Context, p provider.Provider, entity model.Entity) error {
	ev, err := p.FetchEvent(ctx, entity)
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	impact := provider.ClampEventImpact(ev.Impact * s.sourceWeight(ev.SourceName))

	feedEvent := model.FeedEvent{
		ID:         uuid.NewString(),
		EntityID:   entity.ID,
		EntityName: entity.Name,
		SourceName: ev.SourceName,
		Headline:   ev.Headline,
		Sentiment:  ev.Sentiment,
		Impact:     impact,
		SourceURL:  ev.SourceURL,
		Timestamp:  time.Now(),
	}

	entity.AppendPoint(model.HistoryPoint{
		Date:      feedEvent.Timestamp,
		Score:     model.ClampScore(entity.Score + feedEvent.SignedImpact()),
		Reason:    ev.Headline,
		SourceURL: ev.SourceURL,
		Sentiment: ev.Sentiment,
	})

	// Backfill a missing portrait opportunistically
	if entity.ImageURL == "" {
		if url, err := p.FetchImage(ctx, entity); err == nil && url != "" {
			entity.ImageURL = url
		}
	}

	if err := s.store.UpdateEntity(entity); err != nil {
		return err
	}
	s.store.AddFeedEvent(feedEvent)

	if s.onEvent != nil {
		s.onEvent(feedEvent)
	}
	return nil
}

// sourceWeight looks up the weight multiplier of an active source by
// name. Unknown or inactive sources weigh 1.
func (s *Scheduler) sourceWeight(name string) float64 {
	for _, src := range s.store.Sources() {
		if src.Name == name && src.Active && src.Weight > 0 {
			return src.Weight
		}
	}
	return 1.0
}

// finishTick stamps run metadata. Exactly one increment per actual
// tick, irrespective of trigger source.
func (s *Scheduler) finishTick() {
	now := time.Now()
	st := s.store.Schedule()
	st.RunCount++
	st.LastRun = now
	st.NextRun = now.Add(st.Interval())
	s.store.SetSchedule(st)

	if s.onSchedule != nil {
		s.onSchedule(st)
	}
}
