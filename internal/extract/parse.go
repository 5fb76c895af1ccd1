package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/studyflow/internal/model"
)

type rawCandidate struct {
	Title   string `json:"title"`
	Course  string `json:"course"`
	DueDate string `json:"dueDate"`
	Type    string `json:"type"`
}

type recordTasksInput struct {
	Tasks []rawCandidate `json:"tasks"`
}

// parseResponse reads candidates from the forced tool call. A model that
// answers in text instead is accepted when the text holds a JSON array
// or a {"tasks": [...]} object.
func parseResponse(resp *apiResponse) ([]rawCandidate, error) {
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			if block.Name != recordTasksTool {
				continue
			}
			var in recordTasksInput
			if err := json.Unmarshal(block.Input, &in); err != nil {
				return nil, fmt.Errorf("decoding %s input: %w", recordTasksTool, err)
			}
			return in.Tasks, nil
		case "text":
			texts = append(texts, block.Text)
		}
	}

	text := stripCodeFence(strings.TrimSpace(strings.Join(texts, "")))
	if text == "" {
		return nil, errors.New("response contained no tasks payload")
	}

	var list []rawCandidate
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}
	var in recordTasksInput
	if err := json.Unmarshal([]byte(text), &in); err == nil && in.Tasks != nil {
		return in.Tasks, nil
	}
	return nil, fmt.Errorf("response is not JSON: %.80q", text)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// localLayouts are tried, in order, for due dates without a zone offset.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// normalize fills defaults: empty title or course, an unknown type, and
// a missing or unparseable due date all fall back to fixed values.
func (r rawCandidate) normalize(now time.Time, loc *time.Location) Candidate {
	c := Candidate{
		Title:  strings.TrimSpace(r.Title),
		Course: strings.TrimSpace(r.Course),
		Type:   model.ParseTaskType(r.Type),
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Course == "" {
		c.Course = DefaultCourse
	}

	due, ok := parseDueDate(strings.TrimSpace(r.DueDate), loc)
	if !ok {
		due = now
	}
	c.DueDate = due.UTC()
	return c
}

func parseDueDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	// A bare date means end of that day.
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc), true
	}
	return time.Time{}, false
}
