package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/trackx/internal/formatter"
	"github.com/desertthunder/trackx/internal/models"
	tu "github.com/desertthunder/trackx/internal/testing"
)

func exportEngine() (*Engine, *fakeSessions) {
	sessions := &fakeSessions{
		suggester: &tu.StubSuggester{Candidates: models.CandidateQuery{candidate("A", "X"), candidate("B", "Y")}},
		catalog: &tu.StubCatalog{Tracks: map[string]models.Track{
			"A - X": track("1", "A", "X"),
			"B - Y": track("2", "B", "Y"),
		}},
	}
	return newTestEngine(sessions, 2), sessions
}

func TestBatchExport_SuccessfulExport(t *testing.T) {
	tests := []struct {
		name     string
		format   formatter.Format
		queries  []string
		wantFile func(dir string) string
	}{
		{
			name:     "single query json export",
			format:   formatter.FormatJSON,
			queries:  []string{"rainy day"},
			wantFile: func(dir string) string { return filepath.Join(dir, "01_rainy-day.json") },
		},
		{
			name:     "multiple queries csv export",
			format:   formatter.FormatCSV,
			queries:  []string{"rainy day", "road trip", "focus"},
			wantFile: func(dir string) string { return filepath.Join(dir, "03_focus_tracks.csv") },
		},
		{
			name:     "markdown export",
			format:   formatter.FormatMarkdown,
			queries:  []string{"late night"},
			wantFile: func(dir string) string { return filepath.Join(dir, "01_late-night", "README.md") },
		},
		{
			name:     "text export",
			format:   formatter.FormatText,
			queries:  []string{"late night"},
			wantFile: func(dir string) string { return filepath.Join(dir, "01_late-night_tracks.txt") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, sessions := exportEngine()
			dir := t.TempDir()

			result, err := engine.BatchExport(context.Background(), nil, tt.queries, BatchExportOpts{
				Format:    tt.format,
				OutputDir: dir,
				RateLimit: 100,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.SuccessfulExports != len(tt.queries) || result.FailedExports != 0 {
				t.Errorf("expected %d successes, got %d (failed %d)", len(tt.queries), result.SuccessfulExports, result.FailedExports)
			}
			for i, res := range result.Results {
				if res.Query != tt.queries[i] {
					t.Errorf("result %d is for %q, want %q", i, res.Query, tt.queries[i])
				}
				if res.TrackCount != 2 {
					t.Errorf("expected 2 tracks for %q, got %d", res.Query, res.TrackCount)
				}
			}
			tu.AssertFileExists(t, tt.wantFile(dir))
			tu.AssertFileExists(t, result.ManifestPath)

			if opened, closed := sessions.opened.Load(), sessions.closed.Load(); opened != closed {
				t.Errorf("opened %d sessions but closed %d", opened, closed)
			}
		})
	}
}

func TestBatchExport_PartialFailures(t *testing.T) {
	engine, _ := exportEngine()
	dir := t.TempDir()

	result, err := engine.BatchExport(context.Background(), nil, []string{"good", "   "}, BatchExportOpts{
		OutputDir: dir,
		RateLimit: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessfulExports != 1 || result.FailedExports != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %d/%d", result.SuccessfulExports, result.FailedExports)
	}
	if result.Results[1].Success() {
		t.Error("blank query should fail")
	}

	var manifest formatter.Manifest
	if err := json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if manifest.Total != 2 || manifest.Failed != 1 {
		t.Errorf("unexpected manifest totals %+v", manifest)
	}
	if manifest.Entries[0].Files[0] != "01_good.json" {
		t.Errorf("manifest files should be relative, got %v", manifest.Entries[0].Files)
	}
	if !strings.Contains(manifest.Entries[1].Error, "invalid input") {
		t.Errorf("expected invalid input error, got %q", manifest.Entries[1].Error)
	}
}

func TestBatchExport_NoMatchesStillExports(t *testing.T) {
	sessions := &fakeSessions{suggester: &tu.StubSuggester{}, catalog: &tu.StubCatalog{}}
	engine := newTestEngine(sessions, 2)
	dir := t.TempDir()

	result, err := engine.BatchExport(context.Background(), nil, []string{"obscure"}, BatchExportOpts{OutputDir: dir, RateLimit: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := result.Results[0]
	if !res.Success() || res.Status != models.SearchNoMatches || res.TrackCount != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	tu.AssertFileExists(t, filepath.Join(dir, "01_obscure.json"))
}

func TestBatchExport_ContextCancellation(t *testing.T) {
	engine, _ := exportEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.BatchExport(ctx, nil, []string{"a", "b", "c"}, BatchExportOpts{OutputDir: t.TempDir(), RateLimit: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FailedExports != 3 {
		t.Errorf("expected all 3 exports to fail, got %d", result.FailedExports)
	}
	if len(result.Results) != 3 {
		t.Errorf("expected a result per query, got %d", len(result.Results))
	}
}

func TestBatchExport_DefaultOptions(t *testing.T) {
	engine, _ := exportEngine()
	tempDir := t.TempDir()
	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, tempDir)
	defer tu.MustChdir(t, originalDir)

	result, err := engine.BatchExport(context.Background(), nil, []string{"x"}, BatchExportOpts{RateLimit: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.OutputDirectory, "trackx_export_") {
		t.Errorf("expected default output directory, got %s", result.OutputDirectory)
	}
	if _, err := os.Stat(filepath.Join(tempDir, result.OutputDirectory, "export_manifest.json")); err != nil {
		t.Errorf("manifest missing: %v", err)
	}
}

func TestBatchExport_ProgressUpdates(t *testing.T) {
	engine, _ := exportEngine()
	progress := make(chan ProgressUpdate, 16)

	if _, err := engine.BatchExport(context.Background(), progress, []string{"a", "b"}, BatchExportOpts{OutputDir: t.TempDir(), RateLimit: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(progress)

	completed := 0
	for u := range progress {
		if u.Phase != Export {
			t.Errorf("unexpected phase %s", u.Phase)
		}
		if strings.Contains(u.Message, "✓") {
			completed++
		}
	}
	if completed != 2 {
		t.Errorf("expected 2 completion updates, got %d", completed)
	}
}

func TestBatchExport_InvalidInput(t *testing.T) {
	engine, _ := exportEngine()

	t.Run("NoQueries", func(t *testing.T) {
		if _, err := engine.BatchExport(context.Background(), nil, nil, BatchExportOpts{}); err == nil {
			t.Error("expected error for empty query list")
		}
	})

	t.Run("InvalidOutputDirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := engine.BatchExport(context.Background(), nil, []string{"a"}, BatchExportOpts{OutputDir: filepath.Join(file, "sub")})
		if err == nil {
			t.Error("expected error when the output directory cannot be created")
		}
	})
}
