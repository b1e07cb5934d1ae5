package msglog

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

// Trim rewrites the message log keeping only the most recent keep records
// by sequence id. Runs outside the hot path; writers appending while the
// rewrite is in flight can lose at most the records appended during the
// rename window, all of which are re-fetchable from the remote source.
func (l *Log) Trim(keep int) error {
	if keep <= 0 {
		return nil
	}

	all, err := l.ReadAll(nil)
	if err != nil {
		return err
	}

	if len(all) <= keep {
		return nil
	}

	kept := all[len(all)-keep:]

	var buf []byte

	for _, env := range kept {
		line, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, "marshaling trimmed line")
		}

		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	tmpPath := l.messagesPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf, logFilePermissions); err != nil {
		return errors.Wrap(err, "writing trimmed log")
	}

	if err := os.Rename(tmpPath, l.messagesPath); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "replacing message log")
	}

	l.logger.Debug("trimmed message log",
		"dropped", len(all)-keep,
		"kept", keep,
	)

	return nil
}
