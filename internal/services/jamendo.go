// Jamendo API v3.0 implementation of [CatalogProvider]
//
// API reference: https://developer.jamendo.com/v3.0/tracks
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

const (
	jamendoBaseURL       = "https://api.jamendo.com/v3.0"
	jamendoInclude       = "musicinfo+stats+licenses"
	jamendoDownloadLimit = 5
)

// JamendoTrack is one element of a Jamendo /tracks response.
type JamendoTrack struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Duration      int    `json:"duration"`
	ArtistName    string `json:"artist_name"`
	AlbumName     string `json:"album_name"`
	ReleaseDate   string `json:"releasedate"`
	AlbumImage    string `json:"album_image"`
	Image         string `json:"image"`
	Audio         string `json:"audio"`
	AudioDownload string `json:"audiodownload"`
	ShareURL      string `json:"shareurl"`
	ShortURL      string `json:"shorturl"`
	MusicInfo     struct {
		Tags struct {
			Genres []string `json:"genres"`
		} `json:"tags"`
	} `json:"musicinfo"`
}

// JamendoResponse is the /tracks envelope.
type JamendoResponse struct {
	Headers struct {
		Status       string `json:"status"`
		Code         int    `json:"code"`
		ErrorMessage string `json:"error_message"`
		ResultsCount int    `json:"results_count"`
	} `json:"headers"`
	Results []JamendoTrack `json:"results"`
}

// JamendoProvider resolves tracks against the Jamendo catalog.
//
// Jamendo serves full-length audio rather than preview clips, so tracks carry
// StreamURL and DownloadURL and leave PreviewURL nil.
type JamendoProvider struct {
	client       *Client
	baseURL      string
	clientID     string
	lang         string
	downloadable bool
}

// NewJamendoProvider creates a Jamendo adapter that sends every request through client.
func NewJamendoProvider(cfg shared.JamendoConfig, client *Client) *JamendoProvider {
	p := &JamendoProvider{
		client:       client,
		baseURL:      jamendoBaseURL,
		clientID:     cfg.ClientID,
		lang:         jamendoLanguage(cfg.Lang),
		downloadable: cfg.PreferDownloadable,
	}
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return p
}

func (p *JamendoProvider) Name() string { return shared.ProviderJamendo }

// SearchBest tries a name search first and falls back to full-text search when it is empty.
//
// When the provider prefers downloadable tracks it asks for a few results and
// matches only one that has an audiodownload link.
func (p *JamendoProvider) SearchBest(ctx context.Context, q models.SearchQuery) models.SearchOutcome {
	term := q.Candidate.Term()
	if term == "" {
		return models.NotFound(q.Candidate)
	}

	limit := 1
	if p.downloadable {
		limit = jamendoDownloadLimit
	}

	var results []JamendoTrack
	for _, field := range []string{"namesearch", "search"} {
		params := url.Values{}
		params.Set(field, term)
		params.Set("order", "relevance")
		params.Set("limit", strconv.Itoa(limit))
		if p.lang != "" {
			params.Set("lang", p.lang)
		}

		body, err := p.tracks(ctx, params)
		if err != nil {
			return models.Failed(q.Candidate, err)
		}
		if len(body.Results) > 0 {
			results = body.Results
			break
		}
	}

	item, ok := pickBest(results, p.downloadable, func(t JamendoTrack) bool { return t.AudioDownload != "" })
	if !ok || (p.downloadable && item.AudioDownload == "") {
		return models.NotFound(q.Candidate)
	}
	track, ok := p.normalize(item)
	if !ok {
		return models.NotFound(q.Candidate)
	}
	return models.Found(q.Candidate, track)
}

// LookupByIDs fetches tracks by id in chunks and reassembles them in request order.
func (p *JamendoProvider) LookupByIDs(ctx context.Context, ids []string, opts models.LookupOptions) []models.LookupOutcome {
	found := make(map[string]models.Track, len(ids))
	failed := make(map[string]error)

	for _, group := range chunk(ids, opts.ChunkSize) {
		params := url.Values{}
		params.Set("id", strings.Join(group, " "))
		params.Set("limit", strconv.Itoa(len(group)))

		body, err := p.tracks(ctx, params)
		if err != nil {
			for _, id := range group {
				failed[id] = err
			}
			continue
		}
		for _, item := range body.Results {
			if track, ok := p.normalize(item); ok {
				found[track.ID] = track
			}
		}
	}

	return reassemble(ids, found, failed)
}

func (p *JamendoProvider) tracks(ctx context.Context, params url.Values) (*JamendoResponse, error) {
	params.Set("client_id", p.clientID)
	params.Set("format", "json")
	params.Set("include", jamendoInclude)

	var body JamendoResponse
	if _, err := p.client.Execute(ctx, Request{
		Method:   http.MethodGet,
		URL:      p.baseURL + "/tracks",
		Query:    params,
		Target:   &body,
		Validate: StatusOK,
	}); err != nil {
		return nil, err
	}
	if body.Headers.Status == "failed" {
		return nil, fmt.Errorf("%w: jamendo error %d: %s", shared.ErrValidation, body.Headers.Code, body.Headers.ErrorMessage)
	}
	return &body, nil
}

func (p *JamendoProvider) normalize(item JamendoTrack) (models.Track, bool) {
	track := models.Track{
		Source:      p.Name(),
		ID:          item.ID,
		Title:       item.Name,
		Artist:      item.ArtistName,
		Album:       item.AlbumName,
		ReleaseDate: item.ReleaseDate,
		DurationSec: models.Optional(item.Duration),
		ArtworkURL:  models.Optional(firstNonEmpty(item.AlbumImage, item.Image)),
		TrackURL:    models.Optional(firstNonEmpty(item.ShareURL, item.ShortURL)),
		StreamURL:   models.Optional(item.Audio),
		DownloadURL: models.Optional(item.AudioDownload),
	}
	if genres := item.MusicInfo.Tags.Genres; len(genres) > 0 {
		track.Genre = genres[0]
	}

	if track.ID == "" || track.Validate() != nil {
		return models.Track{}, false
	}
	return track, true
}

// jamendoLanguage reduces a locale such as en_us to the two-letter code Jamendo expects.
func jamendoLanguage(lang string) string {
	code, _, _ := strings.Cut(strings.ToLower(lang), "_")
	return code
}
