package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/trackx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI, TUI or WebSocket layer for display.
type ProgressUpdate struct {
	Phase   Phase  `json:"phase"`   // Operation phase
	Step    int    `json:"step"`    // Current step number within phase
	Total   int    `json:"total"`   // Total steps in this phase
	Message string `json:"message"` // Human-readable message for display
	Data    any    `json:"-"`       // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Suggest Phase = iota
	Search
	Lookup
	Complete
	Export
)

func (p Phase) String() string {
	switch p {
	case Suggest:
		return "suggest"
	case Search:
		return "search"
	case Lookup:
		return "lookup"
	case Complete:
		return "complete"
	case Export:
		return "export"
	default:
		return ""
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func suggestingUpdate(provider, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Suggest,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Asking %s for tracks matching %q...", provider, query),
	}
}

func suggestedUpdate(candidates models.CandidateQuery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Suggest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Received %d candidate(s)", len(candidates)),
		Data:    candidates,
	}
}

func searchingUpdate(step, total int, outcome *models.SearchOutcome) ProgressUpdate {
	if outcome == nil {
		return ProgressUpdate{
			Phase:   Search,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("Searching catalog for %d candidate(s)...", total),
		}
	}
	return ProgressUpdate{
		Phase:   Search,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, outcome.Query, outcome.Status),
		Data:    outcome,
	}
}

func lookupUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Lookup,
		Step:    0,
		Total:   count,
		Message: fmt.Sprintf("Fetching details for %d track(s)...", count),
	}
}

func completeUpdate(result *AggregateResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolved %d of %d candidate(s) in %s", len(result.Tracks), len(result.Candidates), result.Duration.Round(time.Millisecond)),
		Data:    result,
	}
}

func exportingUpdate(step, total int, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, query),
	}
}

func exportCompletedUpdate(step, total int, query string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, query, filesCount),
	}
}

func exportFailedUpdate(step, total int, query string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, query, err),
	}
}
