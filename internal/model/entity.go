// Package model defines the domain types shared across polipulse:
// tracked entities, their score history, raw feed events, feed sources,
// and scheduler state.
package model

import (
	"time"
)

// BaselineScore is the starting score for every tracked entity and the
// baseline from which reconstructed history accumulates.
const BaselineScore = 100.0

// Score band for entities. Scores are clamped into [MinScore, MaxScore]
// after every update.
const (
	MinScore = 0.0
	MaxScore = 200.0
)

// Entity is a tracked political figure.
//
// Invariant: when History is non-empty, Score equals the Score of the
// most recent HistoryPoint. ApplyHistory and AppendPoint maintain this;
// callers must not mutate History and Score independently.
type Entity struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Role     string  `json:"role,omitempty"`
	Party    string  `json:"party,omitempty"`
	Bio      string  `json:"bio,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
	Score    float64 `json:"score"`
	Trend    float64 `json:"trend"`

	History []HistoryPoint `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryPoint is one dated score sample in an entity's history.
type HistoryPoint struct {
	Date      time.Time `json:"date"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
}

// ClampScore clamps a score into the valid entity band.
func ClampScore(s float64) float64 {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// ApplyHistory replaces the entity's history and re-derives Score and
// Trend from it. An empty series leaves the entity untouched.
func (e *Entity) ApplyHistory(points []HistoryPoint, now time.Time) {
	if len(points) == 0 {
		return
	}
	e.History = points
	last := points[len(points)-1]
	prev := BaselineScore
	if len(points) > 1 {
		prev = points[len(points)-2].Score
	}
	e.Score = last.Score
	e.Trend = last.Score - prev
	e.UpdatedAt = now
}

// AppendPoint applies one new sample on top of the current score,
// keeping Score, Trend and History coherent.
func (e *Entity) AppendPoint(p HistoryPoint) {
	p.Score = ClampScore(p.Score)
	e.Trend = p.Score - e.Score
	e.Score = p.Score
	e.History = append(e.History, p)
	e.UpdatedAt = p.Date
}
