package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	requestTimeout   = 90 * time.Second
)

// Defaults applied to fields the model leaves empty or malformed.
const (
	DefaultTitle  = "Untitled Task"
	DefaultCourse = "Unassigned"
)

// Candidate is a task inferred from email, before ids and provenance are
// assigned by sync.
type Candidate struct {
	Title   string
	Course  string
	DueDate time.Time
	Type    model.TaskType
}

// Extractor turns a batch of emails into task candidates.
type Extractor interface {
	Extract(ctx context.Context, emails []source.Email) ([]Candidate, error)
}

// Client extracts tasks through the Claude Messages API, forcing the
// model to answer through a single schema-constrained tool call.
type Client struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	loc       *time.Location
	client    *http.Client
	now       func() time.Time
}

// New creates an extraction client. Dates without an explicit offset are
// interpreted in loc.
func New(apiKey string, cfg model.AIConfig, loc *time.Location) *Client {
	c := &Client{
		apiKey:    apiKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		loc:       loc,
		client:    &http.Client{Timeout: requestTimeout},
		now:       time.Now,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

// Extract sends all emails in one request and returns the normalized
// candidates in the order the model listed them. An empty batch returns
// immediately without calling the API.
func (c *Client) Extract(ctx context.Context, emails []source.Email) ([]Candidate, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, apperr.New(apperr.ExternalService, "task extraction is not configured",
			fmt.Errorf("missing Anthropic API key"))
	}

	now := c.now().In(c.loc)
	resp, err := c.callAPI(ctx, buildSystemPrompt(now), buildUserPrompt(emails))
	if err != nil {
		return nil, err
	}

	raw, err := parseResponse(resp)
	if err != nil {
		return nil, apperr.New(apperr.ExternalService, "could not parse extracted tasks", err)
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, r.normalize(now, c.loc))
	}
	return candidates, nil
}

// callAPI makes a single request to the Claude Messages API.
func (c *Client) callAPI(ctx context.Context, system, user string) (*apiResponse, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages: []apiMessage{
			{Role: "user", Content: []apiContentBlock{{Type: "text", Text: user}}},
		},
		Tools:      toolDefinitions(),
		ToolChoice: &apiToolChoice{Type: "tool", Name: recordTasksTool},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Temporary("task extraction unavailable", fmt.Errorf("calling Claude API: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Temporary("task extraction unavailable", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperr.New(apperr.ExternalService, "could not parse extracted tasks",
			fmt.Errorf("decoding response: %w", err))
	}
	return &result, nil
}

// statusError classifies a non-200 answer. Rate limits, overload and
// server errors are retryable; everything else is not.
func statusError(status int, body []byte) error {
	msg := string(body)
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	err := fmt.Errorf("API error (%d): %s", status, msg)

	if status == http.StatusTooManyRequests || status >= 500 {
		return apperr.Temporary("task extraction unavailable", err)
	}
	return apperr.New(apperr.ExternalService, "task extraction failed", err)
}

func buildSystemPrompt(now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You extract academic tasks for a university student from their email.\n\n")
	fmt.Fprintf(&sb, "Today is %s (%s). ", now.Format("Monday, January 2, 2006"), now.Format("2006-01-02"))
	sb.WriteString("Resolve relative dates such as \"next Friday\" or \"tomorrow\" against today ")
	sb.WriteString("and each email's sent date.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Only record concrete deadlines or preparation the student must do.\n")
	sb.WriteString("- Announcements with no required action produce no task.\n")
	sb.WriteString("- One email may contain several tasks; record each separately.\n")
	sb.WriteString("- If an email gives a date but no time, use 23:59:59 local time.\n")
	sb.WriteString("- Use type \"prep\" for work due before a class meeting, \"reading\" for readings, ")
	sb.WriteString("\"quiz\" for quizzes and exams, \"study\" for studying, \"assignment\" for ")
	sb.WriteString("submissions, otherwise \"other\".\n")
	sb.WriteString("- Use the course code as written (e.g. \"CS 256\", \"PSYC 101\").\n\n")
	sb.WriteString("Answer only by calling the record_tasks tool.")
	return sb.String()
}

func buildUserPrompt(emails []source.Email) string {
	var sb strings.Builder
	sb.WriteString("Emails:\n")
	for i, e := range emails {
		fmt.Fprintf(&sb, "\n--- Email %d ---\n", i+1)
		fmt.Fprintf(&sb, "From: %s\n", e.From)
		fmt.Fprintf(&sb, "Sent: %s\n", e.Date.Format(time.RFC3339))
		fmt.Fprintf(&sb, "Subject: %s\n\n", e.Subject)
		sb.WriteString(e.Body)
		sb.WriteString("\n")
	}
	return sb.String()
}
