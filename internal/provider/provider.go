// Package provider defines the capability contract every data backend
// implements, the shared retry policy, and the cached factory that
// selects the active backend from configuration.
package provider

import (
	"context"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

// Single-event impact clamp. Fresh events always carry a non-negative
// magnitude; the sign of their effect comes from sentiment.
const (
	MinEventImpact = 0.0
	MaxEventImpact = 15.0
)

// EventRecencyDays is the freshness window for FetchEvent.
const EventRecencyDays = 3

// Event is one fresh occurrence reported by a backend. A valid
// provenance URL is mandatory; backends drop candidates without one.
type Event struct {
	Headline   string
	Sentiment  model.Sentiment
	Impact     float64
	SourceName string
	SourceURL  string
	Date       time.Time
}

// Provider is the uniform capability surface over heterogeneous
// backends. Every method that finds nothing qualifying returns the
// zero value with a nil error - absence is not a failure.
type Provider interface {
	// Name identifies the backend kind.
	Name() string

	// IsConfigured is a pure predicate: true iff required credentials
	// and endpoints are present. Never performs a network call.
	IsConfigured() bool

	// FetchEvent returns one fresh, recent occurrence for the entity,
	// or nil when nothing qualifying was found.
	FetchEvent(ctx context.Context, entity model.Entity) (*Event, error)

	// FetchHistory returns a sorted, window-filtered, provenance-
	// required score series reconstructed over the last windowDays.
	FetchHistory(ctx context.Context, entity model.Entity, windowDays int) ([]model.HistoryPoint, error)

	// FetchImage returns a portrait URL for the entity, or "".
	FetchImage(ctx context.Context, entity model.Entity) (string, error)

	// SuggestSources proposes feed sources not already present in
	// existing.
	SuggestSources(ctx context.Context, existing []model.Source) ([]model.Source, error)

	// Chat returns a raw generative completion, or "" for backends
	// without generative capability.
	Chat(ctx context.Context, prompt string) (string, error)
}

// ClampEventImpact clamps a fresh-event impact into the non-negative
// band. Out-of-range values are clamped, never rejected, so one
// malformed field does not discard an otherwise valid event.
func ClampEventImpact(v float64) float64 {
	if v < 0 {
		v = -v // backends occasionally sign the magnitude
	}
	if v < MinEventImpact {
		return MinEventImpact
	}
	if v > MaxEventImpact {
		return MaxEventImpact
	}
	return v
}
