package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/services"
	"github.com/desertthunder/trackx/internal/shared"
	tu "github.com/desertthunder/trackx/internal/testing"
)

func sampleList() *models.TrackList {
	return &models.TrackList{
		Query:       "90s grunge",
		Status:      "ok",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Tracks: []models.Track{
			{
				Source:      "itunes",
				ID:          "101",
				Title:       "Smells Like Teen Spirit",
				Artist:      "Nirvana",
				Album:       "Nevermind",
				DurationSec: models.Optional(301),
				ArtworkURL:  models.Optional("https://img.example/101/600x600bb.jpg"),
				PreviewURL:  models.Optional("https://audio.example/101.m4a"),
				TrackURL:    models.Optional("https://music.example/101"),
			},
			{
				Source: "itunes",
				ID:     "102",
				Title:  "Black Hole Sun",
				Artist: "Soundgarden",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJSON},
		{"json", FormatJSON},
		{"CSV", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"text", FormatText},
		{" txt ", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseFormat("xml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleList())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			Query  string           `json:"query"`
			Status string           `json:"status"`
			Tracks []map[string]any `json:"tracks"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("export is not valid JSON: %v", err)
		}
		if decoded.Query != "90s grunge" || decoded.Status != "ok" {
			t.Errorf("unexpected header fields: %+v", decoded)
		}
		if len(decoded.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(decoded.Tracks))
		}
		if decoded.Tracks[0]["coverUrl"] != "https://img.example/101/600x600bb.jpg" {
			t.Errorf("expected coverUrl on first track, got %v", decoded.Tracks[0]["coverUrl"])
		}
		if v, ok := decoded.Tracks[1]["previewUrl"]; !ok || v != nil {
			t.Errorf("expected explicit null previewUrl, got %v (present=%v)", v, ok)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleList())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Source,ID,Title,Artist,Album,Duration,PreviewURL,TrackURL") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "itunes,101,Smells Like Teen Spirit,Nirvana,Nevermind,301,https://audio.example/101.m4a,https://music.example/101") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, "itunes,102,Black Hole Sun,Soundgarden,,,,") {
			t.Errorf("CSV should leave unknown fields empty, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleList(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# 90s grunge",
				"**Tracks**: 2",
				"**Status**: ok",
				"1. Nirvana - [Smells Like Teen Spirit](https://music.example/101) (Nevermind) [5:01]",
				"([preview](https://audio.example/101.m4a))",
				"2. Soundgarden - Black Hole Sun [--:--]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("markdown should not reference a cover image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleList(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Errorf("markdown missing cover reference")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleList())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Query: 90s grunge") {
			t.Errorf("text missing query line, got: %s", output)
		}
		if !strings.Contains(output, "1. Nirvana - Smells Like Teen Spirit [5:01]") {
			t.Errorf("text missing first track, got: %s", output)
		}
	})

	t.Run("Render", func(t *testing.T) {
		data, err := Render(FormatText, sampleList())
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if !strings.HasPrefix(string(data), "Query:") {
			t.Errorf("expected text rendering, got: %s", data)
		}
	})
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"90s Grunge!", "90s-grunge"},
		{"  Songs -- about   rain ", "songs-about-rain"},
		{"???", "tracks"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), nil, ""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpegbytes"))
		}))
		defer srv.Close()

		client := services.NewClient(services.ClientOptions{RateLimit: 100, RatePeriod: time.Second, RetryDelay: time.Millisecond})
		defer client.Close()

		data, err := DownloadImage(context.Background(), client, srv.URL+"/cover.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "jpegbytes" {
			t.Errorf("unexpected image bytes %q", data)
		}
	})
}

func TestWriteExport(t *testing.T) {
	ctx := context.Background()

	t.Run("JSON", func(t *testing.T) {
		dir := t.TempDir()
		files, err := WriteExport(ctx, sampleList(), FormatJSON, dir, "", nil)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		want := filepath.Join(dir, "90s-grunge.json")
		if len(files) != 1 || files[0] != want {
			t.Fatalf("expected [%s], got %v", want, files)
		}
		tu.AssertFileExists(t, want)
	})

	t.Run("CSV", func(t *testing.T) {
		dir := t.TempDir()
		files, err := WriteExport(ctx, sampleList(), FormatCSV, dir, "mix", nil)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if len(files) != 1 || filepath.Base(files[0]) != "mix_tracks.csv" {
			t.Fatalf("unexpected files %v", files)
		}
		if !strings.Contains(tu.MustReadFile(t, files[0]), "Black Hole Sun") {
			t.Error("csv export missing track")
		}
	})

	t.Run("TextInWorkingDirectory", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tempDir)
		defer tu.MustChdir(t, originalDir)

		files, err := WriteExport(ctx, sampleList(), FormatText, ".", "", nil)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(tempDir, filepath.Base(files[0])))
	})

	t.Run("MarkdownWithCover", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("jpegbytes"))
		}))
		defer srv.Close()

		list := sampleList()
		list.Tracks[0].ArtworkURL = models.Optional(srv.URL + "/art.jpg")

		client := services.NewClient(services.ClientOptions{RateLimit: 100, RatePeriod: time.Second, RetryDelay: time.Millisecond})
		defer client.Close()

		dir := t.TempDir()
		files, err := WriteExport(ctx, list, FormatMarkdown, dir, "grunge", client)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected cover and README, got %v", files)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "grunge", "cover.jpg"))
		readme := tu.MustReadFile(t, filepath.Join(dir, "grunge", "README.md"))
		if !strings.Contains(readme, "![Cover](cover.jpg)") {
			t.Errorf("README should reference the downloaded cover, got:\n%s", readme)
		}
	})

	t.Run("MarkdownWithoutClient", func(t *testing.T) {
		dir := t.TempDir()
		files, err := WriteExport(ctx, sampleList(), FormatMarkdown, dir, "grunge", nil)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if len(files) != 1 || filepath.Base(files[0]) != "README.md" {
			t.Fatalf("expected README only, got %v", files)
		}
	})
}

func TestWriteManifest(t *testing.T) {
	t.Run("SuccessfulExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		m := Manifest{
			Format:      FormatCSV,
			GeneratedAt: time.Now(),
			Total:       2,
			Successful:  1,
			Failed:      1,
			Entries: []ManifestEntry{
				{Query: "grunge", Status: "ok", TrackCount: 3, Files: []string{"grunge_tracks.csv"}},
				{Query: "rain", Status: "failed", Error: "service unavailable"},
			},
		}
		if err := WriteManifest(m, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}

		var decoded Manifest
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("manifest is not valid JSON: %v", err)
		}
		if decoded.Total != 2 || decoded.Failed != 1 || len(decoded.Entries) != 2 {
			t.Errorf("unexpected manifest %+v", decoded)
		}
		if decoded.Entries[1].Error != "service unavailable" {
			t.Errorf("expected failure message to round-trip, got %q", decoded.Entries[1].Error)
		}
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "manifest.json")
		if err := WriteManifest(Manifest{}, path); err == nil {
			t.Error("expected error for missing directory")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("manifest should not exist, stat err = %v", err)
		}
	})
}
