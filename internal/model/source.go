package model

import "time"

// SourceType categorizes a feed source.
type SourceType string

const (
	SourceNews      SourceType = "news"
	SourceSocial    SourceType = "social"
	SourceBlog      SourceType = "blog"
	SourceBroadcast SourceType = "broadcast"
)

// Source is a named feed descriptor. Weight is a positive multiplier
// applied to impact magnitudes, not a probability.
type Source struct {
	Name   string     `json:"name"`
	Type   SourceType `json:"type"`
	URL    string     `json:"url,omitempty"`
	Weight float64    `json:"weight"`
	Active bool       `json:"active"`
}

// DiscoveredSource is a candidate source awaiting human review.
// Accepted and Rejected are mutually exclusive; once either is set the
// record is terminal and excluded from future candidate surfacing.
type DiscoveredSource struct {
	Domain    string    `json:"domain"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
	Accepted  bool      `json:"accepted"`
	Rejected  bool      `json:"rejected"`
}

// Terminal reports whether the candidate has been resolved either way.
func (d DiscoveredSource) Terminal() bool {
	return d.Accepted || d.Rejected
}

// DefaultSources is the seed source list used when no stored state
// exists yet.
func DefaultSources() []Source {
	return []Source{
		{Name: "Associated Press", Type: SourceNews, Weight: 1.2, Active: true},
		{Name: "Reuters", Type: SourceNews, Weight: 1.2, Active: true},
		{Name: "National Desk", Type: SourceBroadcast, Weight: 1.0, Active: true},
		{Name: "State Politics Blog", Type: SourceBlog, Weight: 0.7, Active: true},
		{Name: "Social Chatter", Type: SourceSocial, Weight: 0.5, Active: false},
	}
}
