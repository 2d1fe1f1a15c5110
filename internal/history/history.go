// Package history reconstructs an entity's score series from the raw,
// unordered event lists that data backends return.
package history

import (
	"net/url"
	"sort"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

// Historical impact clamp. Historical events may be signed (a negative
// impact lowers the running score directly).
const (
	MinImpact = -20.0
	MaxImpact = 20.0
)

// RawEvent is one dated impact event as reported by a backend, before
// validation and folding.
type RawEvent struct {
	Date      string          `json:"date"` // RFC3339 or YYYY-MM-DD
	Impact    float64         `json:"impact"`
	Reason    string          `json:"reason,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
	Sentiment model.Sentiment `json:"sentiment,omitempty"`
}

// parseDate accepts the two date shapes backends produce.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ValidURL reports whether s is a syntactically valid absolute http(s)
// URL, the provenance requirement for accepting an event.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ClampImpact clamps a historical impact into the signed band.
func ClampImpact(v float64) float64 {
	if v < MinImpact {
		return MinImpact
	}
	if v > MaxImpact {
		return MaxImpact
	}
	return v
}

// Reconstruct turns raw backend events into a valid HistoryPoint
// series:
//
//  1. drop events whose date fails to parse or falls outside
//     [now - windowDays, now]
//  2. drop events lacking a valid provenance URL
//  3. sort survivors ascending by date
//  4. fold left from the baseline score, accumulating each event's
//     signed impact into a running cumulative score
//
// Zero surviving events yields an empty series - callers treat that as
// "no update", not an error. Duplicate same-day events both contribute;
// they represent distinct occurrences.
func Reconstruct(events []RawEvent, windowDays int, now time.Time) []model.HistoryPoint {
	cutoff := now.AddDate(0, 0, -windowDays)

	type dated struct {
		at time.Time
		ev RawEvent
	}
	var survivors []dated
	for _, ev := range events {
		at, ok := parseDate(ev.Date)
		if !ok {
			continue
		}
		if at.Before(cutoff) || at.After(now) {
			continue
		}
		if !ValidURL(ev.SourceURL) {
			continue
		}
		survivors = append(survivors, dated{at: at, ev: ev})
	}

	if len(survivors) == 0 {
		return nil
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].at.Before(survivors[j].at)
	})

	score := model.BaselineScore
	points := make([]model.HistoryPoint, 0, len(survivors))
	for _, d := range survivors {
		score = model.ClampScore(score + ClampImpact(d.ev.Impact))
		points = append(points, model.HistoryPoint{
			Date:      d.at,
			Score:     score,
			Reason:    d.ev.Reason,
			SourceURL: d.ev.SourceURL,
			Sentiment: model.ParseSentiment(string(d.ev.Sentiment)),
		})
	}
	return points
}
