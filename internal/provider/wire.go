package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nvaughn/polipulse/internal/config"
)

// Vendor wire configurations

func geminiWire(settings config.ModelSettings) *wireConfig {
	model := settings.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent"
	}

	return &wireConfig{
		Name:     "gemini",
		Endpoint: endpoint,
		APIKey:   settings.APIKey,
		Model:    model,
		// x-goog-api-key header instead of URL query param
		AuthHeader:    "x-goog-api-key",
		AuthPrefix:    "",
		BuildBody:     buildGeminiBody,
		ParseResponse: parseGeminiResponse,
	}
}

func openAIWire(settings config.ModelSettings) *wireConfig {
	model := settings.Model
	if model == "" {
		model = "gpt-4o"
	}
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}

	return &wireConfig{
		Name:          "openai",
		Endpoint:      endpoint,
		APIKey:        settings.APIKey,
		Model:         model,
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

func ollamaWire(settings config.ModelSettings) *wireConfig {
	host := settings.Endpoint
	if host == "" {
		host = "http://localhost:11434"
	}

	// Auto-detect model if not specified
	model := settings.Model
	if model == "" {
		model = detectOllamaModel(host)
	}

	return &wireConfig{
		Name:          "ollama",
		Endpoint:      host + "/api/generate",
		Model:         model,
		AuthHeader:    "", // No auth needed
		KeyOptional:   true,
		BuildBody:     buildOllamaBody,
		ParseResponse: parseOllamaResponse,
	}
}

// detectOllamaModel queries Ollama for available models and picks one
func detectOllamaModel(host string) string {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(host + "/api/tags")
	if err != nil {
		return "" // Will mark provider as unconfigured endpoint-wise at call time
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return ""
	}
	if len(tags.Models) == 0 {
		return ""
	}

	// Prefer instruct models for structured output
	for _, m := range tags.Models {
		if strings.Contains(strings.ToLower(m.Name), "instruct") {
			return m.Name
		}
	}
	return tags.Models[0].Name
}

// Body builders

func buildGeminiBody(cfg *wireConfig, prompt string) map[string]any {
	return map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": 2048,
		},
	}
}

func buildOpenAIBody(cfg *wireConfig, prompt string) map[string]any {
	return map[string]any{
		"model":                 cfg.Model,
		"max_completion_tokens": 2048,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
}

func buildOllamaBody(cfg *wireConfig, prompt string) map[string]any {
	return map[string]any{
		"model":  cfg.Model,
		"prompt": prompt,
		"stream": false,
	}
}

// Response parsers

func parseGeminiResponse(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		return resp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", nil
}

func parseOpenAIResponse(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", nil
}

func parseOllamaResponse(body []byte) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}
