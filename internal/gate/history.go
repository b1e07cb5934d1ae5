package gate

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/interaction"
	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/pkg/hook"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// historyRetention caps the interaction history file.
const historyRetention = 500

// HistoryEntry is one completed interaction.
type HistoryEntry struct {
	InteractionID string    `json:"interaction_id"`
	SessionID     string    `json:"session_id,omitempty"`
	Event         string    `json:"event"`
	Tool          string    `json:"tool,omitempty"`
	Verdict       string    `json:"verdict"`
	Reason        string    `json:"reason,omitempty"`
	AutoAllowed   bool      `json:"auto_allowed,omitempty"`
	Cancelled     bool      `json:"cancelled,omitempty"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// History appends completed interactions to an audit log. Failures are
// logged and swallowed; the history file is never load-bearing.
type History struct {
	path   string
	logger logger.Logger
	now    func() time.Time
}

// NewHistory creates a History writing to path.
func NewHistory(path string, log logger.Logger, now func() time.Time) *History {
	return &History{
		path:   path,
		logger: log,
		now:    now,
	}
}

// Record appends one entry and trims the file when it grows past the
// retention cap.
func (h *History) Record(
	interactionID string,
	hookCtx *hook.Context,
	outcome *interaction.Outcome,
	elapsed time.Duration,
) {
	entry := HistoryEntry{
		InteractionID: interactionID,
		SessionID:     hookCtx.SessionID,
		Event:         hookCtx.EventType.String(),
		Tool:          hookCtx.ToolName,
		Verdict:       string(outcome.Verdict),
		Reason:        outcome.Reason,
		AutoAllowed:   outcome.AutoAllowed,
		Cancelled:     outcome.Cancelled,
		ElapsedMs:     elapsed.Milliseconds(),
		RecordedAt:    h.now(),
	}

	if err := h.append(entry); err != nil {
		h.logger.Error("history append failed", "error", err.Error())

		return
	}

	if err := h.trim(); err != nil {
		h.logger.Error("history trim failed", "error", err.Error())
	}
}

func (h *History) append(entry HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshaling history entry")
	}

	file, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, paths.StateFilePermissions)
	if err != nil {
		return errors.Wrap(err, "opening history log")
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "writing history entry")
	}

	return nil
}

// trim rewrites the file keeping the newest historyRetention lines.
func (h *History) trim() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return errors.Wrap(err, "reading history log")
	}

	lines := splitLines(data)
	if len(lines) <= historyRetention {
		return nil
	}

	keep := lines[len(lines)-historyRetention:]

	tmp := h.path + ".tmp"

	out := make([]byte, 0, len(data))
	for _, line := range keep {
		out = append(out, line...)
		out = append(out, '\n')
	}

	if err := os.WriteFile(tmp, out, paths.StateFilePermissions); err != nil {
		return errors.Wrap(err, "writing trimmed history")
	}

	if err := os.Rename(tmp, h.path); err != nil {
		return errors.Wrap(err, "replacing history log")
	}

	return nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte

	start := 0

	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}

			start = i + 1
		}
	}

	if start < len(data) {
		lines = append(lines, data[start:])
	}

	return lines
}
