// package formatter provides functions to export resolved track lists to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/services"
	"github.com/desertthunder/trackx/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts json, csv, markdown (or md) and txt (or text).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidFlag, s)
	}
}

type jsonExport struct {
	Query       string             `json:"query"`
	Status      string             `json:"status,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Tracks      []models.TrackView `json:"tracks"`
}

// ExportToJSON renders the list in the caller-facing track shape.
func ExportToJSON(list *models.TrackList) ([]byte, error) {
	return shared.MarshalJSON(jsonExport{
		Query:       list.Query,
		Status:      list.Status,
		GeneratedAt: list.GeneratedAt,
		Tracks:      models.Views(list.Tracks),
	}, true)
}

// ExportToCSV converts a TrackList to CSV format with columns: Source, ID, Title, Artist, Album, Duration, PreviewURL, TrackURL
func ExportToCSV(list *models.TrackList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source", "ID", "Title", "Artist", "Album", "Duration", "PreviewURL", "TrackURL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range list.Tracks {
		duration := ""
		if track.DurationSec != nil {
			duration = strconv.Itoa(*track.DurationSec)
		}
		record := []string{
			track.Source,
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			duration,
			deref(track.PreviewURL),
			deref(track.TrackURL),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a TrackList to Markdown format with optional cover image
func ExportToMarkdown(list *models.TrackList, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Query)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(list.Tracks))
	if list.Status != "" {
		fmt.Fprintf(&buf, "**Status**: %s\n", list.Status)
	}
	if !list.GeneratedAt.IsZero() {
		fmt.Fprintf(&buf, "**Generated**: %s\n", list.GeneratedAt.Format(time.RFC3339))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range list.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		title := track.Title
		if track.TrackURL != nil {
			title = fmt.Sprintf("[%s](%s)", track.Title, *track.TrackURL)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]", i+1, track.Artist, title, albumPart, shared.FormatDuration(track.DurationSec))
		if track.PreviewURL != nil {
			fmt.Fprintf(&buf, " ([preview](%s))", *track.PreviewURL)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a TrackList to plain text format
func ExportToText(list *models.TrackList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Query: %s\n", list.Query)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(list.Tracks))

	for i, track := range list.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.Artist, track.Title, shared.FormatDuration(track.DurationSec))
	}

	return buf.Bytes(), nil
}

// Render encodes list in the given format.
func Render(format Format, list *models.TrackList) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(list)
	case FormatMarkdown:
		return ExportToMarkdown(list, "")
	case FormatText:
		return ExportToText(list)
	default:
		return ExportToJSON(list)
	}
}

// DownloadImage downloads an image through the throttled client and returns the raw bytes
func DownloadImage(ctx context.Context, client *services.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		return nil, fmt.Errorf("no request client provided")
	}

	resp, err := client.Execute(ctx, services.Request{
		Method:   http.MethodGet,
		URL:      url,
		Decode:   services.DecodeBytes,
		Validate: services.StatusOK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	return resp.Content, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a filesystem-safe base name from a query.
func Slug(query string) string {
	s := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(query), "-"), "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	if s == "" {
		s = "tracks"
	}
	return s
}

// WriteExport writes list under dir in the given format and returns the created files.
//
// Files are named after base: {base}.json, {base}_tracks.csv, {base}_tracks.txt, or a
// {base}/README.md directory for markdown. When client is non-nil the markdown export
// downloads the first track's artwork as cover.jpg; a failed download is skipped.
func WriteExport(ctx context.Context, list *models.TrackList, format Format, dir, base string, client *services.Client) ([]string, error) {
	if base == "" {
		base = Slug(list.Query)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	switch format {
	case FormatCSV:
		data, err := ExportToCSV(list)
		if err != nil {
			return nil, err
		}
		return writeFile(filepath.Join(dir, base+"_tracks.csv"), data)

	case FormatText:
		data, err := ExportToText(list)
		if err != nil {
			return nil, err
		}
		return writeFile(filepath.Join(dir, base+"_tracks.txt"), data)

	case FormatMarkdown:
		outputDir := filepath.Join(dir, base)
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		var files []string
		coverFilename := ""
		if cover := firstArtwork(list.Tracks); cover != "" && client != nil {
			if data, err := DownloadImage(ctx, client, cover); err == nil {
				coverPath := filepath.Join(outputDir, "cover.jpg")
				if err := os.WriteFile(coverPath, data, 0644); err == nil {
					coverFilename = "cover.jpg"
					files = append(files, coverPath)
				}
			}
		}

		data, err := ExportToMarkdown(list, coverFilename)
		if err != nil {
			return nil, err
		}
		written, err := writeFile(filepath.Join(outputDir, "README.md"), data)
		if err != nil {
			return nil, err
		}
		return append(files, written...), nil

	default:
		data, err := ExportToJSON(list)
		if err != nil {
			return nil, err
		}
		return writeFile(filepath.Join(dir, base+".json"), data)
	}
}

// ManifestEntry records the export of one query.
type ManifestEntry struct {
	Query      string   `json:"query"`
	Status     string   `json:"status"`
	TrackCount int      `json:"track_count"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Manifest summarizes a batch export.
type Manifest struct {
	Format      Format          `json:"format"`
	GeneratedAt time.Time       `json:"generated_at"`
	Total       int             `json:"total_queries"`
	Successful  int             `json:"successful_exports"`
	Failed      int             `json:"failed_exports"`
	Entries     []ManifestEntry `json:"entries"`
}

// WriteManifest writes the batch manifest as indented JSON.
func WriteManifest(m Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) ([]string, error) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return []string{path}, nil
}

func firstArtwork(tracks []models.Track) string {
	for _, t := range tracks {
		if t.ArtworkURL != nil {
			return *t.ArtworkURL
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
