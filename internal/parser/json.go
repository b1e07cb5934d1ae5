// Package parser provides JSON input parsing for Claude Code hooks.
package parser

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/pkg/hook"
)

var (
	// ErrEmptyInput is returned when the input is empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// JSONInput represents the raw JSON input structure the host delivers.
type JSONInput struct {
	HookEventName  string          `json:"hook_event_name,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	Message        string          `json:"message,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	ToolUseID      string          `json:"tool_use_id,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	StopHookActive bool            `json:"stop_hook_active,omitempty"`
}

// JSONParser parses hook JSON from a reader (stdin in production).
type JSONParser struct {
	reader io.Reader
}

// NewJSONParser creates a new JSONParser reading from the given reader.
func NewJSONParser(reader io.Reader) *JSONParser {
	return &JSONParser{
		reader: reader,
	}
}

// Parse parses the JSON input and extracts the hook context. defaultEvent
// applies when the payload does not name its own event.
func (p *JSONParser) Parse(defaultEvent hook.EventType) (*hook.Context, error) {
	jsonBytes, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}

	if len(jsonBytes) == 0 {
		return nil, ErrEmptyInput
	}

	var input JSONInput
	if unmarshalErr := json.Unmarshal(jsonBytes, &input); unmarshalErr != nil {
		return nil, errors.CombineErrors(ErrInvalidJSON, unmarshalErr)
	}

	eventType := defaultEvent

	if input.HookEventName != "" {
		if parsed, parseErr := hook.EventTypeString(input.HookEventName); parseErr == nil {
			eventType = parsed
		}
	}

	ctx := &hook.Context{
		EventType:           eventType,
		ToolName:            input.ToolName,
		ToolInput:           input.ToolInput,
		NotificationMessage: input.Message,
		RawJSON:             string(jsonBytes),
		SessionID:           input.SessionID,
		ToolUseID:           input.ToolUseID,
		WorkingDir:          input.Cwd,
		TranscriptPath:      input.TranscriptPath,
		StopHookActive:      input.StopHookActive,
	}

	return ctx, nil
}
