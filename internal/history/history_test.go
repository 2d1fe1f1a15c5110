package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

func TestReconstructFiltersAndFolds(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 10 raw events: 3 lack a provenance URL, 2 are older than the
	// 60-day window. Exactly 5 must survive.
	var events []RawEvent
	for i := 0; i < 5; i++ {
		events = append(events, RawEvent{
			Date:      now.AddDate(0, 0, -50+i*10).Format("2006-01-02"),
			Impact:    float64(i + 1),
			Reason:    fmt.Sprintf("event %d", i),
			SourceURL: fmt.Sprintf("https://example.com/%d", i),
			Sentiment: model.SentimentPositive,
		})
	}
	for i := 0; i < 3; i++ {
		events = append(events, RawEvent{
			Date:   now.AddDate(0, 0, -10-i).Format("2006-01-02"),
			Impact: 5,
		})
	}
	for i := 0; i < 2; i++ {
		events = append(events, RawEvent{
			Date:      now.AddDate(0, 0, -70-i).Format("2006-01-02"),
			Impact:    5,
			SourceURL: "https://example.com/old",
		})
	}

	points := Reconstruct(events, 60, now)
	if len(points) != 5 {
		t.Fatalf("expected 5 surviving points, got %d", len(points))
	}

	// Scores must be a strictly ordered cumulative sum from baseline
	want := model.BaselineScore
	for i, p := range points {
		want += float64(i + 1)
		if p.Score != want {
			t.Errorf("point %d: score = %.1f, want %.1f", i, p.Score, want)
		}
		if i > 0 && p.Date.Before(points[i-1].Date) {
			t.Errorf("point %d: dates not ascending", i)
		}
	}
}

func TestReconstructWindow(t *testing.T) {
	now := time.Now()
	events := []RawEvent{
		{Date: now.AddDate(0, 0, -5).Format(time.RFC3339), Impact: 3, SourceURL: "https://a.example/1"},
		{Date: now.AddDate(0, 0, -40).Format(time.RFC3339), Impact: 3, SourceURL: "https://a.example/2"},
	}

	points := Reconstruct(events, 30, now)
	if len(points) != 1 {
		t.Fatalf("expected 1 point inside the window, got %d", len(points))
	}

	cutoff := now.AddDate(0, 0, -30)
	for _, p := range points {
		if p.Date.Before(cutoff) {
			t.Errorf("point dated %s lies before the window cutoff", p.Date)
		}
	}
}

func TestReconstructEmpty(t *testing.T) {
	if points := Reconstruct(nil, 60, time.Now()); points != nil {
		t.Errorf("expected nil series for no events, got %d points", len(points))
	}

	// All candidates invalid
	events := []RawEvent{
		{Date: "not-a-date", Impact: 5, SourceURL: "https://a.example"},
		{Date: "2026-01-01", Impact: 5, SourceURL: "ftp://bad.scheme"},
		{Date: "2026-01-01", Impact: 5},
	}
	if points := Reconstruct(events, 36500, time.Now()); points != nil {
		t.Errorf("expected nil series for invalid events, got %d points", len(points))
	}
}

func TestReconstructSameDayDuplicates(t *testing.T) {
	now := time.Now()
	day := now.AddDate(0, 0, -1).Format("2006-01-02")
	events := []RawEvent{
		{Date: day, Impact: 2, SourceURL: "https://a.example/1"},
		{Date: day, Impact: 3, SourceURL: "https://a.example/2"},
	}

	points := Reconstruct(events, 7, now)
	if len(points) != 2 {
		t.Fatalf("same-day duplicates must both contribute, got %d points", len(points))
	}
	if got := points[1].Score; got != model.BaselineScore+5 {
		t.Errorf("cumulative score = %.1f, want %.1f", got, model.BaselineScore+5)
	}
}

func TestReconstructClampsImpact(t *testing.T) {
	now := time.Now()
	events := []RawEvent{
		{Date: now.AddDate(0, 0, -1).Format("2006-01-02"), Impact: 500, SourceURL: "https://a.example/1"},
	}

	points := Reconstruct(events, 7, now)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if got := points[0].Score; got != model.BaselineScore+MaxImpact {
		t.Errorf("oversized impact not clamped: score = %.1f", got)
	}
}

func TestValidURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/story", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"example.com/story", false},
		{"", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := ValidURL(tt.url); got != tt.want {
			t.Errorf("ValidURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
