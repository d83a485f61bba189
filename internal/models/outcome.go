package models

// Status is the per-item result of a search or lookup.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SearchOutcome is the result of searching one candidate.
//
// Track is set only for [StatusFound]; Err only for [StatusFailed].
type SearchOutcome struct {
	Query  Candidate
	Status Status
	Track  *Track
	Err    error
}

// Found builds a successful search outcome.
func Found(q Candidate, t Track) SearchOutcome {
	return SearchOutcome{Query: q, Status: StatusFound, Track: &t}
}

// NotFound builds an empty search outcome.
func NotFound(q Candidate) SearchOutcome {
	return SearchOutcome{Query: q, Status: StatusNotFound}
}

// Failed builds a failed search outcome.
func Failed(q Candidate, err error) SearchOutcome {
	return SearchOutcome{Query: q, Status: StatusFailed, Err: err}
}

// LookupOutcome is the result of fetching one identifier from a details endpoint.
type LookupOutcome struct {
	ID     string
	Status Status
	Track  *Track
	Err    error
}

// LookupFound builds a successful lookup outcome.
func LookupFound(id string, t Track) LookupOutcome {
	return LookupOutcome{ID: id, Status: StatusFound, Track: &t}
}

// LookupNotFound builds a lookup outcome for an identifier the provider did not return.
func LookupNotFound(id string) LookupOutcome {
	return LookupOutcome{ID: id, Status: StatusNotFound}
}

// LookupFailed builds a lookup outcome for an identifier whose request failed.
func LookupFailed(id string, err error) LookupOutcome {
	return LookupOutcome{ID: id, Status: StatusFailed, Err: err}
}

// Tally counts outcomes by status.
type Tally struct {
	Found    int
	NotFound int
	Failed   int
}

// Total is the number of counted outcomes.
func (t Tally) Total() int { return t.Found + t.NotFound + t.Failed }

// TallySearches counts search outcomes by status.
func TallySearches(outcomes []SearchOutcome) Tally {
	var t Tally
	for _, o := range outcomes {
		t.add(o.Status)
	}
	return t
}

// TallyLookups counts lookup outcomes by status.
func TallyLookups(outcomes []LookupOutcome) Tally {
	var t Tally
	for _, o := range outcomes {
		t.add(o.Status)
	}
	return t
}

func (t *Tally) add(s Status) {
	switch s {
	case StatusFound:
		t.Found++
	case StatusNotFound:
		t.NotFound++
	case StatusFailed:
		t.Failed++
	}
}
