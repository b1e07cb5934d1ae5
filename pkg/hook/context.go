// Package hook provides core types for Claude Code hook context.
package hook

import "encoding/json"

//go:generate enumer -type=EventType -trimprefix=EventType -json -text

// EventType represents the type of hook event.
type EventType int

const (
	// EventTypeUnknown represents an unknown event type.
	EventTypeUnknown EventType = iota

	// EventTypePreToolUse is triggered before a tool is executed.
	EventTypePreToolUse

	// EventTypeStop is triggered when the agent finishes its turn.
	EventTypeStop

	// EventTypeNotification is triggered for user notifications.
	EventTypeNotification
)

// Context represents the complete hook invocation context.
type Context struct {
	// EventType is the type of hook event (PreToolUse, Stop, Notification).
	EventType EventType

	// ToolName is the name of the tool being invoked. The relay forwards
	// any tool name, so this stays a free-form string.
	ToolName string

	// ToolInput contains the raw tool-specific input parameters.
	ToolInput json.RawMessage

	// NotificationMessage is the notification text (for Notification events).
	NotificationMessage string

	// RawJSON contains the original JSON input for advanced parsing.
	RawJSON string

	// SessionID is the unique identifier for the Claude Code session.
	SessionID string

	// ToolUseID is the unique identifier for this tool invocation.
	ToolUseID string

	// WorkingDir is the working directory of the session.
	WorkingDir string

	// TranscriptPath is the path to the session transcript file.
	TranscriptPath string

	// StopHookActive indicates the Stop hook fired while a previous
	// stop-continuation was still in flight.
	StopHookActive bool
}

// InputField extracts a single string field from ToolInput.
// Returns the empty string when the field is absent or not a string.
func (c *Context) InputField(name string) string {
	if len(c.ToolInput) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.ToolInput, &fields); err != nil {
		return ""
	}

	raw, ok := fields[name]
	if !ok {
		return ""
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}

	return value
}

// GetCommand returns the command from ToolInput (Bash tool).
func (c *Context) GetCommand() string {
	return c.InputField("command")
}

// GetFilePath returns the file path from ToolInput, preferring file_path over path.
func (c *Context) GetFilePath() string {
	if p := c.InputField("file_path"); p != "" {
		return p
	}

	return c.InputField("path")
}

// HasSessionID returns true if a session ID is present.
func (c *Context) HasSessionID() bool {
	return c.SessionID != ""
}

// IsQuestionTool returns true if the tool is the interactive question tool.
func (c *Context) IsQuestionTool() bool {
	return c.ToolName == "AskUserQuestion"
}
