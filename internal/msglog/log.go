package msglog

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/pkg/logger"
)

// File permission constants.
const (
	logFilePermissions = 0o600

	// maxLineSize bounds one log line; Telegram messages cap at 4096
	// characters, so this is generous.
	maxLineSize = 256 * 1024
)

// Log is the file-backed append log of envelopes and claims.
type Log struct {
	messagesPath string
	claimsPath   string
	logger       logger.Logger
	now          func() time.Time
}

// Option configures the Log.
type Option func(*Log)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Log) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New creates a Log over the given message and claim log paths.
func New(messagesPath, claimsPath string, opts ...Option) *Log {
	l := &Log{
		messagesPath: messagesPath,
		claimsPath:   claimsPath,
		logger:       logger.NewNoOpLogger(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Append appends the given envelopes, dropping any whose sequence id is
// already present. Dedup-before-append keeps a twice-observed update from
// ever yielding two claimable envelopes.
func (l *Log) Append(envelopes []Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	known, err := l.KnownIDs()
	if err != nil {
		return err
	}

	var fresh []Envelope

	for _, env := range envelopes {
		if _, seen := known[env.SequenceID]; seen {
			continue
		}

		known[env.SequenceID] = struct{}{}

		fresh = append(fresh, env)
	}

	if len(fresh) == 0 {
		return nil
	}

	return appendLines(l.messagesPath, fresh)
}

// ReadAll returns every well-formed envelope matching filter. A nil filter
// matches everything. A missing file reads as empty, never as an error.
func (l *Log) ReadAll(filter Predicate) ([]Envelope, error) {
	var out []Envelope

	err := l.scanMessages(func(env Envelope) {
		if filter == nil || filter(&env) {
			out = append(out, env)
		}
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// KnownIDs returns the set of sequence ids present in the message log.
func (l *Log) KnownIDs() (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})

	err := l.scanMessages(func(env Envelope) {
		ids[env.SequenceID] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// HighWaterMark returns the largest sequence id in the message log, or 0
// for an empty log.
func (l *Log) HighWaterMark() (int64, error) {
	var mark int64

	err := l.scanMessages(func(env Envelope) {
		if env.SequenceID > mark {
			mark = env.SequenceID
		}
	})
	if err != nil {
		return 0, err
	}

	return mark, nil
}

// AppendClaim durably records a claim. Callers must hold the claim
// coordinator's lock.
func (l *Log) AppendClaim(claim Claim) error {
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = l.now()
	}

	return appendLines(l.claimsPath, []Claim{claim})
}

// ClaimedIDs returns the set of claimed sequence ids.
func (l *Log) ClaimedIDs() (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})

	err := l.scanFile(l.claimsPath, func(line []byte) {
		var claim Claim
		if err := json.Unmarshal(line, &claim); err != nil {
			l.logger.Debug("skipping malformed claim line", "error", err.Error())

			return
		}

		ids[claim.SequenceID] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// scanMessages walks well-formed envelope lines.
func (l *Log) scanMessages(visit func(Envelope)) error {
	return l.scanFile(l.messagesPath, func(line []byte) {
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			l.logger.Debug("skipping malformed message line", "error", err.Error())

			return
		}

		visit(env)
	})
}

// scanFile walks non-empty lines of a line-delimited JSON file. A missing
// file is treated as empty.
func (l *Log) scanFile(path string, visit func([]byte)) error {
	//nolint:gosec // G304: path comes from the state directory resolver
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "opening %s", path)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		visit(line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scanning %s", path)
	}

	return nil
}

// appendLines marshals each value to one JSON line and appends them in a
// single write.
func appendLines[T any](path string, values []T) error {
	var buf []byte

	for _, v := range values {
		line, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "marshaling log line")
		}

		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	//nolint:gosec // G304: path comes from the state directory resolver
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return errors.Wrapf(err, "opening %s for append", path)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(buf); err != nil {
		return errors.Wrapf(err, "appending to %s", path)
	}

	return nil
}
