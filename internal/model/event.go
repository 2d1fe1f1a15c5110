package model

import (
	"strings"
	"time"
)

// Sentiment classifies the polarity of an observed event. The set is
// closed: anything a backend returns outside it maps to neutral.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps free-form backend output onto the closed set.
func ParseSentiment(s string) Sentiment {
	switch sent := Sentiment(strings.ToLower(strings.TrimSpace(s))); sent {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return sent
	}
	return SentimentNeutral
}

// FeedEvent is one externally observed occurrence, append-only once
// recorded. Impact is always non-negative; the sign of its effect on an
// entity's score is derived from Sentiment, never stored signed.
type FeedEvent struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name"`
	SourceName string    `json:"source_name"`
	Headline   string    `json:"headline"`
	Sentiment  Sentiment `json:"sentiment"`
	Impact     float64   `json:"impact"`
	SourceURL  string    `json:"source_url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SignedImpact returns the score delta this event contributes: negative
// for negative sentiment, zero for neutral, positive otherwise.
func (ev FeedEvent) SignedImpact() float64 {
	switch ev.Sentiment {
	case SentimentNegative:
		return -ev.Impact
	case SentimentNeutral:
		return 0
	}
	return ev.Impact
}
