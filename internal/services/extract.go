package services

import (
	"bytes"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/desertthunder/trackx/internal/models"
)

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	stripPolicy  = bluemonday.StrictPolicy()

	// wrapperKeys are object keys under which a model may nest the candidate list.
	wrapperKeys = []string{"items", "tracks", "songs", "results"}
)

// ExtractCandidates scans generated text fragments for a JSON list of tracks.
//
// Each fragment is tried whole, then each fenced code block, then from every '[' or '{'
// offset. The first value that yields at least one candidate wins. Candidates are
// stripped of markup, deduplicated by normalized title and artist keeping the first
// occurrence, and capped at max when max > 0. Text without a usable list yields an
// empty query.
func ExtractCandidates(fragments []string, max int) models.CandidateQuery {
	for _, text := range fragments {
		if found := scanText(text); len(found) > 0 {
			return dedupe(found, max)
		}
	}
	return models.CandidateQuery{}
}

func scanText(text string) []models.Candidate {
	if found := decodeCandidates([]byte(strings.TrimSpace(text))); len(found) > 0 {
		return found
	}

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if found := decodeCandidates([]byte(strings.TrimSpace(m[1]))); len(found) > 0 {
			return found
		}
	}

	data := []byte(text)
	for i, b := range data {
		if b != '[' && b != '{' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(data[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if found := decodeCandidates(raw); len(found) > 0 {
			return found
		}
	}
	return nil
}

// decodeCandidates accepts a JSON array of {title, artist} objects or plain title strings,
// or an object wrapping such an array.
func decodeCandidates(data []byte) []models.Candidate {
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil
		}
		return candidatesFrom(items)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		for _, key := range wrapperKeys {
			if inner, ok := obj[key]; ok {
				if found := decodeCandidates(bytes.TrimSpace(inner)); len(found) > 0 {
					return found
				}
			}
		}
	}
	return nil
}

func candidatesFrom(items []json.RawMessage) []models.Candidate {
	var out []models.Candidate
	for _, item := range items {
		var title string
		if err := json.Unmarshal(item, &title); err == nil {
			c := models.Candidate{Title: clean(title)}
			if !c.IsZero() {
				out = append(out, c)
			}
			continue
		}

		var obj struct {
			Title  string `json:"title"`
			Name   string `json:"name"`
			Artist string `json:"artist"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		if obj.Title == "" {
			obj.Title = obj.Name
		}
		c := models.Candidate{Title: clean(obj.Title), Artist: clean(obj.Artist)}
		if c.Title != "" {
			out = append(out, c)
		}
	}
	return out
}

// clean strips markup and collapses whitespace.
func clean(s string) string {
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(candidates []models.Candidate, max int) models.CandidateQuery {
	seen := make(map[string]struct{}, len(candidates))
	out := make(models.CandidateQuery, 0, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
