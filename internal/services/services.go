// package services defines the catalog and suggestion provider interfaces and their HTTP adapters
//
// iTunes, Jamendo (catalogs); Gemini, OpenAI (suggesters)
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

// DefaultChunkSize bounds the number of ids sent in one lookup request.
const DefaultChunkSize = 50

// CatalogProvider searches a music catalog and fetches track details by id.
//
// Implementations never return errors from SearchBest or LookupByIDs: request failures
// become per-item [models.StatusFailed] outcomes.
type CatalogProvider interface {
	// Name returns the provider identifier stored on [models.Track.Source].
	Name() string

	// SearchBest returns the best match for one candidate.
	// Repeating the same query against an unchanged catalog yields the same outcome.
	SearchBest(ctx context.Context, q models.SearchQuery) models.SearchOutcome

	// LookupByIDs returns exactly one outcome per id, in request order.
	// Ids the catalog does not return are [models.StatusNotFound].
	LookupByIDs(ctx context.Context, ids []string, opts models.LookupOptions) []models.LookupOutcome
}

// Suggester asks a text-generation provider for candidate tracks.
type Suggester interface {
	Name() string

	// Suggest returns at most max deduplicated candidates for a free-text query.
	// A failed request is an error; a response without usable candidates is an empty query.
	Suggest(ctx context.Context, query string, max int) (models.CandidateQuery, error)
}

// NewCatalogProvider builds the catalog adapter registered under name.
func NewCatalogProvider(name string, cfg shared.ProvidersConfig, client *Client) (CatalogProvider, error) {
	switch strings.ToLower(name) {
	case shared.ProviderITunes:
		return NewITunesProvider(cfg.ITunes, client), nil
	case shared.ProviderJamendo:
		if cfg.Jamendo.ClientID == "" {
			return nil, fmt.Errorf("%w: jamendo client_id (set %s)", shared.ErrMissingCredentials, shared.EnvJamendoClientID)
		}
		return NewJamendoProvider(cfg.Jamendo, client), nil
	case shared.ProviderYouTubeMusic:
		return NewYouTubeMusicProvider(cfg.YouTubeMusic, client), nil
	default:
		return nil, fmt.Errorf("%w: unknown catalog %q", shared.ErrInvalidConfig, name)
	}
}

// NewSuggester builds the suggestion adapter registered under name.
func NewSuggester(name string, cfg shared.ProvidersConfig, client *Client, logger *log.Logger) (Suggester, error) {
	switch strings.ToLower(name) {
	case shared.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini api_key (set %s)", shared.ErrMissingCredentials, shared.EnvGeminiAPIKey)
		}
		return NewGeminiSuggester(cfg.Gemini, client, logger), nil
	case shared.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api_key (set %s)", shared.ErrMissingCredentials, shared.EnvOpenAIAPIKey)
		}
		return NewOpenAISuggester(cfg.OpenAI, client, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown suggester %q", shared.ErrInvalidConfig, name)
	}
}

// chunk splits ids into consecutive batches of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// reassemble expands an id-keyed result map back into request order.
// Ids in failed map to [models.StatusFailed]; ids absent from found are [models.StatusNotFound].
func reassemble(ids []string, found map[string]models.Track, failed map[string]error) []models.LookupOutcome {
	out := make([]models.LookupOutcome, len(ids))
	for i, id := range ids {
		if t, ok := found[id]; ok {
			out[i] = models.LookupFound(id, t)
			continue
		}
		if err, ok := failed[id]; ok {
			out[i] = models.LookupFailed(id, err)
			continue
		}
		out[i] = models.LookupNotFound(id)
	}
	return out
}

// pickBest returns the first item satisfying want when prefer is set, else the first item.
func pickBest[T any](items []T, prefer bool, want func(T) bool) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	if prefer {
		for _, item := range items {
			if want(item) {
				return item, true
			}
		}
	}
	return items[0], true
}

// SessionOptions returns the client options a provider session needs on top of base.
// The OpenAI suggester authenticates through an oauth2 bearer transport.
func SessionOptions(name string, cfg shared.ProvidersConfig, base ClientOptions) ClientOptions {
	if strings.EqualFold(name, shared.ProviderOpenAI) && cfg.OpenAI.APIKey != "" {
		base.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.OpenAI.APIKey, TokenType: "Bearer"})
	}
	return base
}

// suggestionPrompt asks for a JSON array of {title, artist} objects.
func suggestionPrompt(query string, max int) string {
	return fmt.Sprintf(
		"Suggest up to %d existing songs matching this request: %q. "+
			"Answer with raw JSON only: an array of objects with string fields \"title\" and \"artist\". "+
			"Use the original song title and the main performing artist. Do not add commentary.",
		max, query,
	)
}
