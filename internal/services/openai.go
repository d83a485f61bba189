// OpenAI chat completions implementation of [Suggester]
//
// Authentication is handled by the session's oauth2 bearer transport (see [SessionOptions]).
package services

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

const (
	openAIBaseURL      = "https://api.openai.com"
	openAIDefaultModel = "gpt-4o-mini"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest is the chat completions request body.
type OpenAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	ResponseFormat map[string]any  `json:"response_format,omitempty"`
}

// OpenAIResponse is the subset of the chat completions response read by the suggester.
type OpenAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Texts returns the message content of every choice in order.
func (r OpenAIResponse) Texts() []string {
	var out []string
	for _, c := range r.Choices {
		if c.Message.Content != "" {
			out = append(out, c.Message.Content)
		}
	}
	return out
}

// OpenAISuggester asks an OpenAI chat model for candidate tracks.
type OpenAISuggester struct {
	client  *Client
	baseURL string
	model   string
	logger  *log.Logger
}

// NewOpenAISuggester creates an OpenAI adapter. client must carry the bearer token source.
func NewOpenAISuggester(cfg shared.OpenAIConfig, client *Client, logger *log.Logger) *OpenAISuggester {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &OpenAISuggester{client: client, baseURL: openAIBaseURL, model: openAIDefaultModel, logger: logger}
	if cfg.BaseURL != "" {
		s.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model != "" {
		s.model = cfg.Model
	}
	return s
}

func (s *OpenAISuggester) Name() string { return shared.ProviderOpenAI }

// Suggest sends the prompt and extracts candidates from every returned choice.
//
// JSON schema mode requires an object at the top level, so the list is wrapped under "tracks".
func (s *OpenAISuggester) Suggest(ctx context.Context, query string, max int) (models.CandidateQuery, error) {
	body := OpenAIRequest{
		Model:    s.model,
		Messages: []openAIMessage{{Role: "user", Content: suggestionPrompt(query, max)}},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name": "track_list",
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tracks": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"title":  map[string]any{"type": "string"},
									"artist": map[string]any{"type": "string"},
								},
								"required":             []string{"title", "artist"},
								"additionalProperties": false,
							},
						},
					},
					"required":             []string{"tracks"},
					"additionalProperties": false,
				},
				"strict": true,
			},
		},
	}

	var out OpenAIResponse
	if _, err := s.client.Execute(ctx, Request{
		Method:   http.MethodPost,
		URL:      s.baseURL + "/v1/chat/completions",
		Body:     body,
		Target:   &out,
		Validate: StatusOK,
	}); err != nil {
		return nil, err
	}

	texts := out.Texts()
	candidates := ExtractCandidates(texts, max)
	s.logger.Debug("openai suggestions", "query", query, "fragments", len(texts), "candidates", len(candidates))
	return candidates, nil
}
