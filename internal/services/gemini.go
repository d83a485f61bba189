// Gemini generateContent implementation of [Suggester]
//
// API reference: https://ai.google.dev/api/generate-content
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.5-flash"
)

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// GeminiRequest is the generateContent request body.
type GeminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

// GeminiResponse is the subset of the generateContent response read by the suggester.
type GeminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Texts returns every text part of every candidate in order.
func (r GeminiResponse) Texts() []string {
	var out []string
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				out = append(out, p.Text)
			}
		}
	}
	return out
}

// trackListSchema constrains JSON mode output to an array of {title, artist}.
var trackListSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"title":  map[string]any{"type": "STRING"},
			"artist": map[string]any{"type": "STRING"},
		},
		"required": []string{"title", "artist"},
	},
}

// GeminiSuggester asks a Gemini model for candidate tracks in JSON mode.
type GeminiSuggester struct {
	client  *Client
	baseURL string
	apiKey  string
	model   string
	logger  *log.Logger
}

// NewGeminiSuggester creates a Gemini adapter that sends every request through client.
func NewGeminiSuggester(cfg shared.GeminiConfig, client *Client, logger *log.Logger) *GeminiSuggester {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &GeminiSuggester{client: client, baseURL: geminiBaseURL, apiKey: cfg.APIKey, model: geminiDefaultModel, logger: logger}
	if cfg.BaseURL != "" {
		s.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model != "" {
		s.model = cfg.Model
	}
	return s
}

func (s *GeminiSuggester) Name() string { return shared.ProviderGemini }

// Suggest sends the prompt and extracts candidates from every returned text part.
func (s *GeminiSuggester) Suggest(ctx context.Context, query string, max int) (models.CandidateQuery, error) {
	body := GeminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: suggestionPrompt(query, max)}}}},
		GenerationConfig: map[string]any{
			"response_mime_type": "application/json",
			"response_schema":    trackListSchema,
		},
	}

	var out GeminiResponse
	if _, err := s.client.Execute(ctx, Request{
		Method:   http.MethodPost,
		URL:      fmt.Sprintf("%s/v1beta/models/%s:generateContent", s.baseURL, s.model),
		Header:   http.Header{"X-Goog-Api-Key": []string{s.apiKey}},
		Body:     body,
		Target:   &out,
		Validate: StatusOK,
	}); err != nil {
		return nil, err
	}

	texts := out.Texts()
	candidates := ExtractCandidates(texts, max)
	s.logger.Debug("gemini suggestions", "query", query, "fragments", len(texts), "candidates", len(candidates))
	return candidates, nil
}
