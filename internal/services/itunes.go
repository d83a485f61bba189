// iTunes Search API implementation of [CatalogProvider]
//
// API reference: https://developer.apple.com/library/archive/documentation/AudioVideo/Conceptual/iTuneSearchAPI/
package services

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

const (
	itunesBaseURL       = "https://itunes.apple.com"
	itunesDefaultEntity = "musicTrack"
	itunesPreviewLimit  = 5
)

// ITunesItem is one element of an iTunes search or lookup response.
type ITunesItem struct {
	WrapperType      string `json:"wrapperType"`
	Kind             string `json:"kind"`
	TrackID          int64  `json:"trackId"`
	CollectionID     int64  `json:"collectionId"`
	TrackName        string `json:"trackName"`
	CollectionName   string `json:"collectionName"`
	ArtistName       string `json:"artistName"`
	TrackTimeMillis  int64  `json:"trackTimeMillis"`
	ReleaseDate      string `json:"releaseDate"`
	PrimaryGenreName string `json:"primaryGenreName"`
	PreviewURL       string `json:"previewUrl"`
	TrackViewURL     string `json:"trackViewUrl"`
	ArtworkURL100    string `json:"artworkUrl100"`
	ArtworkURL60     string `json:"artworkUrl60"`
	ArtworkURL30     string `json:"artworkUrl30"`
}

// ITunesResponse is the envelope shared by /search and /lookup.
type ITunesResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []ITunesItem `json:"results"`
}

// ID returns the track id, falling back to the collection id.
func (i ITunesItem) ID() string {
	switch {
	case i.TrackID != 0:
		return strconv.FormatInt(i.TrackID, 10)
	case i.CollectionID != 0:
		return strconv.FormatInt(i.CollectionID, 10)
	default:
		return ""
	}
}

// ITunesProvider resolves tracks against the iTunes Search API.
type ITunesProvider struct {
	client  *Client
	baseURL string
	entity  string
}

// NewITunesProvider creates an iTunes adapter that sends every request through client.
func NewITunesProvider(cfg shared.ITunesConfig, client *Client) *ITunesProvider {
	p := &ITunesProvider{client: client, baseURL: itunesBaseURL, entity: itunesDefaultEntity}
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Entity != "" {
		p.entity = cfg.Entity
	}
	return p
}

func (p *ITunesProvider) Name() string { return shared.ProviderITunes }

// SearchBest queries /search for one candidate.
//
// With PreferPreview the request asks for up to five results and picks the first one
// carrying a preview clip, falling back to the top result.
func (p *ITunesProvider) SearchBest(ctx context.Context, q models.SearchQuery) models.SearchOutcome {
	term := q.Candidate.Term()
	if term == "" {
		return models.NotFound(q.Candidate)
	}

	limit := 1
	if q.PreferPreview {
		limit = itunesPreviewLimit
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", p.entity)
	params.Set("limit", strconv.Itoa(limit))
	setLocale(params, q.Country, q.Language)

	var body ITunesResponse
	if _, err := p.client.Execute(ctx, Request{
		Method:   http.MethodGet,
		URL:      p.baseURL + "/search",
		Query:    params,
		Target:   &body,
		Validate: StatusOK,
	}); err != nil {
		return models.Failed(q.Candidate, err)
	}

	item, ok := pickBest(body.Results, q.PreferPreview, func(i ITunesItem) bool { return i.PreviewURL != "" })
	if !ok {
		return models.NotFound(q.Candidate)
	}

	track, ok := p.normalize(item)
	if !ok {
		return models.NotFound(q.Candidate)
	}
	return models.Found(q.Candidate, track)
}

// LookupByIDs queries /lookup in chunks and reassembles results in request order.
// A failed chunk marks only its own ids as failed.
func (p *ITunesProvider) LookupByIDs(ctx context.Context, ids []string, opts models.LookupOptions) []models.LookupOutcome {
	found := make(map[string]models.Track, len(ids))
	failed := make(map[string]error)

	for _, group := range chunk(ids, opts.ChunkSize) {
		params := url.Values{}
		params.Set("id", strings.Join(group, ","))
		setLocale(params, opts.Country, opts.Language)

		var body ITunesResponse
		if _, err := p.client.Execute(ctx, Request{
			Method:   http.MethodGet,
			URL:      p.baseURL + "/lookup",
			Query:    params,
			Target:   &body,
			Validate: StatusOK,
		}); err != nil {
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

// normalize maps an iTunes item onto [models.Track]. Items without an id, title or
// artist are dropped.
func (p *ITunesProvider) normalize(item ITunesItem) (models.Track, bool) {
	title := item.TrackName
	if title == "" {
		title = item.CollectionName
	}

	track := models.Track{
		Source:      p.Name(),
		ID:          item.ID(),
		Title:       title,
		Artist:      item.ArtistName,
		Album:       item.CollectionName,
		Genre:       item.PrimaryGenreName,
		ReleaseDate: item.ReleaseDate,
		ArtworkURL:  models.Optional(upgradeArtwork(firstNonEmpty(item.ArtworkURL100, item.ArtworkURL60, item.ArtworkURL30))),
		PreviewURL:  models.Optional(item.PreviewURL),
		TrackURL:    models.Optional(item.TrackViewURL),
	}
	if item.TrackTimeMillis > 0 {
		seconds := int(math.Round(float64(item.TrackTimeMillis) / 1000))
		track.DurationSec = &seconds
	}

	if track.ID == "" || track.Validate() != nil {
		return models.Track{}, false
	}
	return track, true
}

// upgradeArtwork rewrites the 100px thumbnail path to the 600px rendition.
func upgradeArtwork(u string) string {
	u = strings.Replace(u, "100x100bb", "600x600bb", 1)
	return strings.Replace(u, "100x100", "600x600", 1)
}

func setLocale(params url.Values, country, language string) {
	if country != "" {
		params.Set("country", country)
	}
	if language != "" {
		params.Set("lang", language)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
