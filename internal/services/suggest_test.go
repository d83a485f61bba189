package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
	tu "github.com/desertthunder/trackx/internal/testing"
)

func TestGeminiSuggester(t *testing.T) {
	t.Run("Suggest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("x-goog-api-key") != "secret" {
				t.Errorf("expected api key header, got %q", r.Header.Get("x-goog-api-key"))
			}

			var body GeminiRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode request: %v", err)
				return
			}
			if body.GenerationConfig["response_mime_type"] != "application/json" {
				t.Errorf("expected JSON mode, got %v", body.GenerationConfig)
			}
			if len(body.Contents) != 1 || !strings.Contains(body.Contents[0].Parts[0].Text, "90s grunge") {
				t.Errorf("expected prompt to carry query, got %+v", body.Contents)
			}

			tu.WriteJSON(t, w, map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{"parts": []map[string]string{
						{"text": `[{"title":"Smells Like Teen Spirit","artist":"Nirvana"},{"title":"Black Hole Sun","artist":"Soundgarden"},{"title":"smells like teen spirit","artist":"NIRVANA"}]`},
					}},
				}},
			})
		}))
		defer srv.Close()

		c := NewClient(fastOptions())
		defer c.Close()
		s := NewGeminiSuggester(shared.GeminiConfig{BaseURL: srv.URL, APIKey: "secret", Model: "gemini-test"}, c, nil)

		got, err := s.Suggest(context.Background(), "90s grunge", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := models.CandidateQuery{
			{Title: "Smells Like Teen Spirit", Artist: "Nirvana"},
			{Title: "Black Hole Sun", Artist: "Soundgarden"},
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("candidate %d: expected %+v, got %+v", i, want[i], got[i])
			}
		}
	})

	t.Run("FailureIsError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		opts := fastOptions()
		opts.MaxAttempts = 1
		c := NewClient(opts)
		defer c.Close()
		s := NewGeminiSuggester(shared.GeminiConfig{BaseURL: srv.URL, APIKey: "secret"}, c, nil)

		if _, err := s.Suggest(context.Background(), "q", 5); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("UnusableTextIsEmpty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, map[string]any{
				"candidates": []map[string]any{{"content": map[string]any{"parts": []map[string]string{{"text": "I cannot help with that."}}}}},
			})
		}))
		defer srv.Close()

		c := NewClient(fastOptions())
		defer c.Close()
		s := NewGeminiSuggester(shared.GeminiConfig{BaseURL: srv.URL, APIKey: "secret"}, c, nil)

		got, err := s.Suggest(context.Background(), "q", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %+v", got)
		}
	})
}

func TestOpenAISuggester(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("expected bearer token, got %q", got)
		}

		var body OpenAIRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if body.Model != "gpt-test" {
			t.Errorf("expected model gpt-test, got %s", body.Model)
		}

		tu.WriteJSON(t, w, map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"role":    "assistant",
					"content": "```json\n{\"tracks\":[{\"title\":\"<b>Lithium</b>\",\"artist\":\"Nirvana\"}]}\n```",
				},
			}},
		})
	}))
	defer srv.Close()

	cfg := shared.ProvidersConfig{OpenAI: shared.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-test"}}
	c := NewClient(SessionOptions(shared.ProviderOpenAI, cfg, fastOptions()))
	defer c.Close()

	s, err := NewSuggester("openai", cfg, c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Suggest(context.Background(), "nirvana deep cuts", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Lithium" || got[0].Artist != "Nirvana" {
		t.Errorf("expected markup-free Lithium candidate, got %+v", got)
	}
}
