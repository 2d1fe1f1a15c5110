package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nvaughn/polipulse/internal/history"
	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/model"
)

// Compile-time interface satisfaction check
var _ Provider = (*aiProvider)(nil)

// wireConfig defines how to communicate with one generative-AI API.
// One value per vendor; the hooks absorb every wire-format difference
// so aiProvider itself stays vendor-agnostic.
type wireConfig struct {
	Name         string
	Endpoint     string
	APIKey       string
	Model        string
	AuthHeader   string            // "x-goog-api-key" or "Authorization"
	AuthPrefix   string            // "" or "Bearer "
	ExtraHeaders map[string]string // Additional headers
	KeyOptional  bool              // Ollama needs no API key

	// Request building
	BuildBody func(cfg *wireConfig, prompt string) map[string]any

	// Response parsing
	ParseResponse func(body []byte) (content string, err error)
}

// aiProvider is a generic HTTP-based generative backend. All five
// capability calls are built on one prompt/completion round trip plus
// structured-output parsing.
type aiProvider struct {
	wire   *wireConfig
	client *http.Client
	retry  backoff
}

func newAIProvider(cfg *wireConfig) *aiProvider {
	return &aiProvider{
		wire:   cfg,
		client: &http.Client{Timeout: 120 * time.Second},
		retry:  newBackoff(),
	}
}

func (p *aiProvider) Name() string {
	return p.wire.Name
}

func (p *aiProvider) IsConfigured() bool {
	if p.wire.Endpoint == "" {
		return false
	}
	return p.wire.KeyOptional || p.wire.APIKey != ""
}

// generate performs one completion round trip through the shared retry
// wrapper.
func (p *aiProvider) generate(ctx context.Context, prompt string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("%s provider not configured", p.wire.Name)
	}

	var content string
	err := p.retry.Do(ctx, p.wire.Name+".generate", func() error {
		var err error
		content, err = p.generateOnce(ctx, prompt)
		return err
	})
	return content, err
}

func (p *aiProvider) generateOnce(ctx context.Context, prompt string) (string, error) {
	logging.Debug("AI provider request", "provider", p.wire.Name, "model", p.wire.Model)

	body := p.wire.BuildBody(p.wire, prompt)
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.wire.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.wire.AuthHeader != "" && p.wire.APIKey != "" {
		httpReq.Header.Set(p.wire.AuthHeader, p.wire.AuthPrefix+p.wire.APIKey)
	}
	for k, v := range p.wire.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{Status: resp.StatusCode, Body: string(respBody)}
	}

	content, err := p.wire.ParseResponse(respBody)
	if err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	logging.Debug("AI response", "provider", p.wire.Name, "content_len", len(content))
	return content, nil
}

// eventPayload is the expected structured output for FetchEvent.
// Required: headline, source_url. Everything else is validated and
// clamped rather than rejected.
type eventPayload struct {
	Headline   string  `json:"headline"`
	Sentiment  string  `json:"sentiment"`
	Impact     float64 `json:"impact"`
	SourceName string  `json:"source_name"`
	SourceURL  string  `json:"source_url"`
	Date       string  `json:"date"`
}

func (p *aiProvider) FetchEvent(ctx context.Context, entity model.Entity) (*Event, error) {
	prompt := fmt.Sprintf(`Find one real news event from the last %d days about %s (%s, %s).
Respond with only a JSON object:
{"headline": "...", "sentiment": "positive|negative|neutral", "impact": 0-15, "source_name": "...", "source_url": "https://...", "date": "YYYY-MM-DD"}
The source_url must be a real article link. If no qualifying recent event exists, respond with exactly NONE.`,
		EventRecencyDays, entity.Name, entity.Role, entity.Party)

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToUpper(content), "NONE") && !strings.Contains(content, "{") {
		return nil, nil
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		logging.Debug("event payload rejected", "provider", p.wire.Name, "error", err)
		return nil, nil
	}
	if payload.Headline == "" || !history.ValidURL(payload.SourceURL) {
		return nil, nil
	}

	date := time.Now()
	if t, err := time.Parse("2006-01-02", payload.Date); err == nil {
		date = t
	}

	sourceName := payload.SourceName
	if sourceName == "" {
		sourceName = p.wire.Name
	}

	return &Event{
		Headline:   payload.Headline,
		Sentiment:  model.ParseSentiment(payload.Sentiment),
		Impact:     ClampEventImpact(payload.Impact),
		SourceName: sourceName,
		SourceURL:  payload.SourceURL,
		Date:       date,
	}, nil
}

func (p *aiProvider) FetchHistory(ctx context.Context, entity model.Entity, windowDays int) ([]model.HistoryPoint, error) {
	prompt := fmt.Sprintf(`List notable news events from the last %d days about %s (%s, %s) that moved public sentiment.
Respond with only a JSON array:
[{"date": "YYYY-MM-DD", "impact": -20 to 20, "reason": "...", "source_url": "https://...", "sentiment": "positive|negative|neutral"}]
Every source_url must be a real article link. Respond with [] if there are none.`,
		windowDays, entity.Name, entity.Role, entity.Party)

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var raw []history.RawEvent
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		logging.Debug("history payload rejected", "provider", p.wire.Name, "error", err)
		return nil, nil
	}

	return history.Reconstruct(raw, windowDays, time.Now()), nil
}

func (p *aiProvider) FetchImage(ctx context.Context, entity model.Entity) (string, error) {
	prompt := fmt.Sprintf(`Provide one direct, publicly accessible portrait image URL for %s (%s).
Respond with only the URL, or NONE if unknown.`, entity.Name, entity.Role)

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(content)
	if !history.ValidURL(url) {
		return "", nil
	}
	return url, nil
}

type sourcePayload struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	URL    string  `json:"url"`
	Weight float64 `json:"weight"`
}

func (p *aiProvider) SuggestSources(ctx context.Context, existing []model.Source) ([]model.Source, error) {
	names := make([]string, 0, len(existing))
	for _, src := range existing {
		names = append(names, src.Name)
	}

	prompt := fmt.Sprintf(`Suggest up to 5 reputable political news sources not in this list: %s.
Respond with only a JSON array:
[{"name": "...", "type": "news|social|blog|broadcast", "url": "https://...", "weight": 0.1-2.0}]`,
		strings.Join(names, ", "))

	content, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var payloads []sourcePayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payloads); err != nil {
		logging.Debug("source payload rejected", "provider", p.wire.Name, "error", err)
		return nil, nil
	}

	known := make(map[string]bool, len(existing))
	for _, src := range existing {
		known[strings.ToLower(src.Name)] = true
	}

	var out []model.Source
	for _, sp := range payloads {
		if sp.Name == "" || known[strings.ToLower(sp.Name)] {
			continue
		}
		weight := sp.Weight
		if weight <= 0 {
			weight = 1.0
		}
		out = append(out, model.Source{
			Name:   sp.Name,
			Type:   parseSourceType(sp.Type),
			URL:    sp.URL,
			Weight: weight,
			Active: false,
		})
	}
	return out, nil
}

func parseSourceType(s string) model.SourceType {
	switch model.SourceType(s) {
	case model.SourceNews, model.SourceSocial, model.SourceBlog, model.SourceBroadcast:
		return model.SourceType(s)
	}
	return model.SourceNews
}

func (p *aiProvider) Chat(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, prompt)
}

// extractJSON pulls the first JSON value out of a completion that may
// wrap it in code fences or prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndexByte(s, ']'); end > arrStart {
			return s[arrStart : end+1]
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > objStart {
			return s[objStart : end+1]
		}
	}
	return s
}
