package extract

import "encoding/json"

// --- Claude API types ---

type apiRequest struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system"`
	Messages   []apiMessage   `json:"messages"`
	Tools      []apiTool      `json:"tools,omitempty"`
	ToolChoice *apiToolChoice `json:"tool_choice,omitempty"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const recordTasksTool = "record_tasks"

// toolDefinitions returns the single tool the model is forced to call.
// Its schema is the contract for extracted candidates.
func toolDefinitions() []apiTool {
	return []apiTool{
		{
			Name: recordTasksTool,
			Description: "Record every actionable academic task found in the emails. " +
				"Call with an empty list when there are none.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"tasks": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"title": {
									"type": "string",
									"description": "Short description of the task"
								},
								"course": {
									"type": "string",
									"description": "Course name or code, e.g. CS 256"
								},
								"dueDate": {
									"type": "string",
									"description": "ISO 8601 due date and time"
								},
								"type": {
									"type": "string",
									"enum": ["assignment", "prep", "reading", "study", "quiz", "other"]
								}
							},
							"required": ["title", "course", "dueDate", "type"]
						}
					}
				},
				"required": ["tasks"]
			}`),
		},
	}
}
