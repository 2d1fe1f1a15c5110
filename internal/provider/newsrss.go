package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/history"
	"github.com/nvaughn/polipulse/internal/model"
)

var _ Provider = (*newsProvider)(nil)

// newsProvider is the keyless search backend. It queries a Google-News-
// style RSS search feed per entity and scores headlines with a small
// sentiment lexicon.
type newsProvider struct {
	feedURL  string
	maxItems int
	client   *http.Client
	parser   *gofeed.Parser
	retry    backoff
}

func newNewsProvider(settings config.NewsRSSSettings) *newsProvider {
	feedURL := settings.FeedURL
	if feedURL == "" {
		feedURL = "https://news.google.com/rss/search"
	}
	maxItems := settings.MaxItems
	if maxItems <= 0 {
		maxItems = 25
	}
	return &newsProvider{
		feedURL:  feedURL,
		maxItems: maxItems,
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   gofeed.NewParser(),
		retry:    newBackoff(),
	}
}

func (p *newsProvider) Name() string { return "newsrss" }

func (p *newsProvider) IsConfigured() bool { return p.feedURL != "" }

// fetchFeed retrieves and parses the query feed for one entity.
func (p *newsProvider) fetchFeed(ctx context.Context, query string) (*gofeed.Feed, error) {
	u := fmt.Sprintf("%s?q=%s&hl=en-US", p.feedURL, url.QueryEscape(query))

	var feed *gofeed.Feed
	err := p.retry.Do(ctx, "newsrss.fetch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", "polipulse/1.0")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch feed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &apiError{Status: resp.StatusCode, Body: resp.Status}
		}

		feed, err = p.parser.Parse(resp.Body)
		if err != nil {
			return fmt.Errorf("parse feed: %w", err)
		}
		return nil
	})
	return feed, err
}

func (p *newsProvider) FetchEvent(ctx context.Context, entity model.Entity) (*Event, error) {
	feed, err := p.fetchFeed(ctx, entity.Name)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -EventRecencyDays)
	var best *gofeed.Item
	var bestAt time.Time
	for i, item := range feed.Items {
		if i >= p.maxItems {
			break
		}
		at, ok := itemTime(item)
		if !ok || at.Before(cutoff) {
			continue
		}
		if !history.ValidURL(item.Link) {
			continue
		}
		if best == nil || at.After(bestAt) {
			best, bestAt = item, at
		}
	}
	if best == nil {
		return nil, nil
	}

	sentiment, magnitude := scoreHeadline(best.Title)
	return &Event{
		Headline:   best.Title,
		Sentiment:  sentiment,
		Impact:     ClampEventImpact(magnitude),
		SourceName: itemSource(best, feed),
		SourceURL:  best.Link,
		Date:       bestAt,
	}, nil
}

func (p *newsProvider) FetchHistory(ctx context.Context, entity model.Entity, windowDays int) ([]model.HistoryPoint, error) {
	feed, err := p.fetchFeed(ctx, entity.Name)
	if err != nil {
		return nil, err
	}

	var raw []history.RawEvent
	for i, item := range feed.Items {
		if i >= p.maxItems {
			break
		}
		at, ok := itemTime(item)
		if !ok {
			continue
		}
		sentiment, magnitude := scoreHeadline(item.Title)
		impact := magnitude
		if sentiment == model.SentimentNegative {
			impact = -impact
		}
		if sentiment == model.SentimentNeutral {
			impact = 0
		}
		raw = append(raw, history.RawEvent{
			Date:      at.Format(time.RFC3339),
			Impact:    impact,
			Reason:    item.Title,
			SourceURL: item.Link,
			Sentiment: sentiment,
		})
	}

	return history.Reconstruct(raw, windowDays, time.Now()), nil
}

// FetchImage is unsupported: a headline feed carries no portraits.
func (p *newsProvider) FetchImage(ctx context.Context, entity model.Entity) (string, error) {
	return "", nil
}

// SuggestSources derives candidates from the publishing domains seen in
// a general politics query, excluding names already present.
func (p *newsProvider) SuggestSources(ctx context.Context, existing []model.Source) ([]model.Source, error) {
	feed, err := p.fetchFeed(ctx, "politics")
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(existing))
	for _, src := range existing {
		known[strings.ToLower(src.Name)] = true
	}

	seen := make(map[string]bool)
	var out []model.Source
	for _, item := range feed.Items {
		name := itemSource(item, feed)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if known[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Source{
			Name:   name,
			Type:   model.SourceNews,
			URL:    item.Link,
			Weight: 1.0,
			Active: false,
		})
	}
	return out, nil
}

// Chat is unsupported: this backend is not generative.
func (p *newsProvider) Chat(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func itemTime(item *gofeed.Item) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, true
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed, true
	}
	return time.Time{}, false
}

// itemSource prefers the per-item source tag Google News emits, then
// the publishing domain, then the feed title.
func itemSource(item *gofeed.Item, feed *gofeed.Feed) string {
	if item.Custom != nil {
		if src, ok := item.Custom["source"]; ok && src != "" {
			return src
		}
	}
	if u, err := url.Parse(item.Link); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return feed.Title
}

// Headline sentiment lexicon. Weights feed the impact magnitude; the
// sign of the sum picks the sentiment.
var headlineLexicon = map[string]float64{
	"wins": 4, "win": 3, "victory": 4, "surges": 4, "surge": 3,
	"leads": 3, "endorsed": 3, "endorses": 2, "praised": 2, "rally": 2,
	"gains": 2, "boost": 2, "record": 2, "strong": 1, "support": 1,

	"scandal": -5, "indicted": -6, "indictment": -5, "resigns": -5,
	"resign": -4, "loses": -3, "defeat": -3, "slumps": -3, "plunges": -4,
	"probe": -3, "investigation": -3, "lawsuit": -3, "backlash": -3,
	"criticized": -2, "controversy": -3, "allegations": -4, "drops": -2,
	"withdraws": -4, "fraud": -5,
}

// scoreHeadline sums lexicon hits in a headline. A zero sum is neutral
// with a token magnitude so the event still registers in the feed.
func scoreHeadline(headline string) (model.Sentiment, float64) {
	sum := 0.0
	for _, word := range strings.FieldsFunc(strings.ToLower(headline), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		sum += headlineLexicon[word]
	}

	switch {
	case sum > 0:
		return model.SentimentPositive, sum
	case sum < 0:
		return model.SentimentNegative, -sum
	}
	return model.SentimentNeutral, 1
}
