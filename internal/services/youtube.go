// YouTube Music implementation of [CatalogProvider]
//
// Talks to the ytmusicapi HTTP proxy (default port 8080). Search results come
// from GET /api/search and single songs from GET /api/songs/{videoId}.
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
	youtubeBaseURL       = "http://localhost:8080"
	youtubeWatchURL      = "https://music.youtube.com/watch?v="
	youtubeFallbackLimit = 3
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack is one search result from the proxy.
//
// Non-song results (videos, artists, albums) may lack a videoId.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
}

// YouTubeSong is the /api/songs/{videoId} envelope.
type YouTubeSong struct {
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		Thumbnail     struct {
			Thumbnails []YouTubeImage `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	Detail string `json:"detail"`
}

// YouTubeMusicProvider resolves tracks against YouTube Music via the proxy.
type YouTubeMusicProvider struct {
	client   *Client
	baseURL  string
	authFile string
}

// NewYouTubeMusicProvider creates a YouTube Music adapter that sends every request through client.
func NewYouTubeMusicProvider(cfg shared.YouTubeMusicConfig, client *Client) *YouTubeMusicProvider {
	p := &YouTubeMusicProvider{client: client, baseURL: youtubeBaseURL, authFile: cfg.AuthFile}
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return p
}

func (p *YouTubeMusicProvider) Name() string { return shared.ProviderYouTubeMusic }

// SearchBest searches songs first and falls back to an unfiltered search,
// taking the first result that carries a videoId.
func (p *YouTubeMusicProvider) SearchBest(ctx context.Context, q models.SearchQuery) models.SearchOutcome {
	term := q.Candidate.Term()
	if term == "" {
		return models.NotFound(q.Candidate)
	}

	songs, err := p.search(ctx, term, "songs", 1)
	if err != nil {
		return models.Failed(q.Candidate, err)
	}
	item, ok := firstVideo(songs)
	if !ok {
		generic, err := p.search(ctx, term, "", youtubeFallbackLimit)
		if err != nil {
			return models.Failed(q.Candidate, err)
		}
		if item, ok = firstVideo(generic); !ok {
			return models.NotFound(q.Candidate)
		}
	}

	track, ok := p.normalize(item)
	if !ok {
		return models.NotFound(q.Candidate)
	}
	return models.Found(q.Candidate, track)
}

// LookupByIDs fetches each video id individually; the proxy has no batch endpoint.
// Outcomes are reassembled in request order.
func (p *YouTubeMusicProvider) LookupByIDs(ctx context.Context, ids []string, _ models.LookupOptions) []models.LookupOutcome {
	found := make(map[string]models.Track, len(ids))
	failed := make(map[string]error)

	for _, id := range ids {
		var song YouTubeSong
		resp, err := p.client.Execute(ctx, Request{
			Method: http.MethodGet,
			URL:    p.baseURL + "/api/songs/" + url.PathEscape(id),
			Header: p.header(),
			Target: &song,
			Validate: func(status int, _ []byte) bool {
				return status == http.StatusOK || status == http.StatusNotFound
			},
		})
		if err != nil {
			failed[id] = err
			continue
		}
		if resp.Status == http.StatusNotFound {
			continue
		}

		d := song.VideoDetails
		item := YouTubeTrack{VideoID: d.VideoID, Title: d.Title, Thumbnails: d.Thumbnail.Thumbnails}
		if d.Author != "" {
			item.Artists = []YouTubeArtist{{Name: d.Author}}
		}
		item.DurationSec, _ = strconv.Atoi(d.LengthSeconds)

		if track, ok := p.normalize(item); ok {
			found[track.ID] = track
		}
	}

	return reassemble(ids, found, failed)
}

func (p *YouTubeMusicProvider) search(ctx context.Context, term, filter string, limit int) ([]YouTubeTrack, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("limit", strconv.Itoa(limit))
	if filter != "" {
		params.Set("filter", filter)
	}

	var results []YouTubeTrack
	if _, err := p.client.Execute(ctx, Request{
		Method:   http.MethodGet,
		URL:      p.baseURL + "/api/search",
		Query:    params,
		Header:   p.header(),
		Target:   &results,
		Validate: StatusOK,
	}); err != nil {
		return nil, fmt.Errorf("youtube music search: %w", err)
	}
	return results, nil
}

func (p *YouTubeMusicProvider) header() http.Header {
	h := http.Header{}
	if p.authFile != "" {
		h.Set("X-Auth-File", p.authFile)
	}
	return h
}

func (p *YouTubeMusicProvider) normalize(item YouTubeTrack) (models.Track, bool) {
	track := models.Track{
		Source:      p.Name(),
		ID:          item.VideoID,
		Title:       item.Title,
		DurationSec: models.Optional(item.DurationSec),
		ArtworkURL:  models.Optional(largestThumbnail(item.Thumbnails)),
		TrackURL:    models.Optional(youtubeWatchURL + item.VideoID),
	}
	if len(item.Artists) > 0 {
		track.Artist = item.Artists[0].Name
	}
	if item.Album != nil {
		track.Album = item.Album.Name
	}
	if track.DurationSec == nil {
		track.DurationSec = models.Optional(parseClock(item.Duration))
	}

	if track.ID == "" || track.Validate() != nil {
		return models.Track{}, false
	}
	return track, true
}

func firstVideo(items []YouTubeTrack) (YouTubeTrack, bool) {
	for _, item := range items {
		if item.VideoID != "" {
			return item, true
		}
	}
	return YouTubeTrack{}, false
}

func largestThumbnail(images []YouTubeImage) string {
	best := -1
	for i, img := range images {
		if img.URL == "" {
			continue
		}
		if best < 0 || img.Width*img.Height > images[best].Width*images[best].Height {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return images[best].URL
}

// parseClock converts "m:ss" or "h:mm:ss" into seconds, returning 0 when malformed.
func parseClock(s string) int {
	if s == "" {
		return 0
	}
	total := 0
	for part := range strings.SplitSeq(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
