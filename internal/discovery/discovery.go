// Package discovery surfaces candidate feed sources from observed
// provenance and provider suggestions, and detects tracked figures who
// have withdrawn.
package discovery

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/model"
	"github.com/nvaughn/polipulse/internal/provider"
	"github.com/nvaughn/polipulse/internal/store"
)

// scanDelay paces bulk provider calls during scans.
const scanDelay = 2 * time.Second

// Pipeline watches event provenance and provider suggestions for new
// source candidates.
type Pipeline struct {
	store   *store.Store
	getProv func() provider.Provider
	limiter *rate.Limiter

	mu sync.Mutex // serializes read-modify-write over the discovered collection
}

func New(st *store.Store, getProv func() provider.Provider) *Pipeline {
	return &Pipeline{
		store:   st,
		getProv: getProv,
		limiter: rate.NewLimiter(rate.Every(scanDelay), 1),
	}
}

// ObserveEvent records the publishing domain of one accepted feed
// event as a discovery candidate. Terminal records are left alone.
func (p *Pipeline) ObserveEvent(ev model.FeedEvent) {
	domain := domainOf(ev.SourceURL)
	if domain == "" {
		return
	}
	p.record(domain, ev.Timestamp)
}

func (p *Pipeline) record(domain string, seen time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range p.store.Discovered() {
		if d.Domain == domain {
			if d.Terminal() {
				return
			}
			d.LastSeen = seen
			d.Count++
			p.store.UpsertDiscovered(d)
			return
		}
	}
	p.store.UpsertDiscovered(model.DiscoveredSource{
		Domain:    domain,
		FirstSeen: seen,
		LastSeen:  seen,
		Count:     1,
	})
}

// Scan asks the active provider for source suggestions and records
// each as a candidate. Awaits store readiness first - a bulk scan
// needs the durability barrier.
func (p *Pipeline) Scan(ctx context.Context) (int, error) {
	if err := p.store.WaitForReady(ctx); err != nil {
		return 0, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	prov := p.getProv()
	suggested, err := prov.SuggestSources(ctx, p.store.Sources())
	if err != nil {
		return 0, err
	}

	now := time.Now()
	added := 0
	for _, src := range suggested {
		domain := domainOf(src.URL)
		if domain == "" {
			domain = strings.ToLower(src.Name)
		}
		p.record(domain, now)
		added++
	}

	logging.Info("discovery scan complete", "provider", prov.Name(), "candidates", added)
	return added, nil
}

// Candidates returns the unresolved discovery records.
func (p *Pipeline) Candidates() []model.DiscoveredSource {
	var out []model.DiscoveredSource
	for _, d := range p.store.Discovered() {
		if !d.Terminal() {
			out = append(out, d)
		}
	}
	return out
}

// Accept resolves a candidate and promotes it to an active source.
// Resolution is terminal either way.
func (p *Pipeline) Accept(domain string) error {
	d, err := p.find(domain)
	if err != nil {
		return err
	}
	d.Accepted = true
	d.Rejected = false
	p.replaceResolved(d)

	p.store.AddSource(model.Source{
		Name:   domain,
		Type:   model.SourceNews,
		Weight: 1.0,
		Active: true,
	})
	return nil
}

// Reject resolves a candidate negatively.
func (p *Pipeline) Reject(domain string) error {
	d, err := p.find(domain)
	if err != nil {
		return err
	}
	d.Rejected = true
	d.Accepted = false
	p.replaceResolved(d)
	return nil
}

func (p *Pipeline) find(domain string) (model.DiscoveredSource, error) {
	for _, d := range p.store.Discovered() {
		if d.Domain == domain {
			return d, nil
		}
	}
	return model.DiscoveredSource{}, store.ErrNotFound
}

// replaceResolved writes a terminal resolution directly: UpsertDiscovered
// refuses to touch records that are already terminal, so the collection
// is rewritten wholesale.
func (p *Pipeline) replaceResolved(resolved model.DiscoveredSource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := p.store.Discovered()
	for i := range all {
		if all[i].Domain == resolved.Domain {
			all[i] = resolved
			break
		}
	}
	p.store.SetDiscovered(all)
}

// CheckWithdrawals asks the provider, per tracked entity, whether the
// figure has withdrawn from public life or the race. Affirmative
// answers remove the entity. Returns the removed names. Backends
// without generative capability are skipped.
func (p *Pipeline) CheckWithdrawals(ctx context.Context) ([]string, error) {
	prov := p.getProv()

	var removed []string
	for _, entity := range p.store.Entities() {
		if ctx.Err() != nil {
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}

		answer, err := prov.Chat(ctx,
			"Has "+entity.Name+" ("+entity.Role+") formally withdrawn from the race or left public office? Answer with exactly YES or NO.")
		if err != nil {
			logging.Warn("withdrawal check failed", "entity", entity.Name, "error", err)
			continue
		}
		if answer == "" {
			// Non-generative backend
			return removed, nil
		}
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "YES") {
			logging.Info("entity withdrew, removing", "entity", entity.Name)
			p.store.RemoveEntity(entity.ID)
			removed = append(removed, entity.Name)
		}
	}
	return removed, nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
