// Package mode resolves the operating mode governing whether a hook
// invocation blocks for operator input.
//
// The mode is externally mutable shared state: the operator can flip it
// from another process while a hook is mid-wait, and that flip is the only
// cancellation channel between processes. Every check therefore reads the
// mode files fresh; nothing is cached across a suspension point.
package mode

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

//go:generate enumer -type=Mode -trimprefix=Mode -transform=lower -json -text

// Mode is the local/remote/readonly operating setting.
type Mode int

const (
	// ModeUnknown represents an unresolved mode.
	ModeUnknown Mode = iota

	// ModeLocal disables the relay; hooks fall through to the host's
	// native permission flow.
	ModeLocal

	// ModeRemote relays permission requests to the operator and blocks.
	ModeRemote

	// ModeReadonly notifies the operator but never blocks; approvals are
	// denied locally.
	ModeReadonly
)

// ProjectModeDir is the per-project directory holding the project mode file.
const ProjectModeDir = ".telegate"

// ProjectModeFile is the project mode file name.
const ProjectModeFile = "mode"

// Resolver reads and writes the three-level mode hierarchy:
// session > project > global.
type Resolver struct {
	resolver    *paths.Resolver
	workDir     string
	defaultMode Mode
	logger      logger.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithDefaultMode overrides the fallback mode when no level is set.
func WithDefaultMode(m Mode) Option {
	return func(r *Resolver) {
		if m != ModeUnknown {
			r.defaultMode = m
		}
	}
}

// NewResolver creates a mode Resolver. workDir anchors the project level.
func NewResolver(resolver *paths.Resolver, workDir string, opts ...Option) *Resolver {
	r := &Resolver{
		resolver: resolver,
		workDir:  workDir,
		// Unconfigured installs stay on the host's native flow.
		defaultMode: ModeLocal,
		logger:      logger.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Current resolves the effective mode for the session, reading every level
// fresh: session-level if set, else project-level, else global, else the
// default.
func (r *Resolver) Current(sessionID string) Mode {
	if sessionID != "" {
		if m := r.readModeFile(r.resolver.SessionModeFile(sessionID)); m != ModeUnknown {
			return m
		}
	}

	if r.workDir != "" {
		if m := r.readModeFile(r.projectModePath()); m != ModeUnknown {
			return m
		}
	}

	if m := r.readModeFile(r.resolver.GlobalModeFile()); m != ModeUnknown {
		return m
	}

	return r.defaultMode
}

// SetGlobal writes the global mode.
func (r *Resolver) SetGlobal(m Mode) error {
	return writeModeFile(r.resolver.GlobalModeFile(), m)
}

// SetProject writes the project mode under the working directory.
func (r *Resolver) SetProject(m Mode) error {
	dir := filepath.Join(r.workDir, ProjectModeDir)
	if err := os.MkdirAll(dir, paths.StateDirPermissions); err != nil {
		return errors.Wrap(err, "creating project mode directory")
	}

	return writeModeFile(r.projectModePath(), m)
}

// SetSession writes the session mode.
func (r *Resolver) SetSession(sessionID string, m Mode) error {
	return writeModeFile(r.resolver.SessionModeFile(sessionID), m)
}

// ClearSession removes the session mode override.
func (r *Resolver) ClearSession(sessionID string) error {
	err := os.Remove(r.resolver.SessionModeFile(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session mode")
	}

	return nil
}

// projectModePath returns the project-level mode file path.
func (r *Resolver) projectModePath() string {
	return filepath.Join(r.workDir, ProjectModeDir, ProjectModeFile)
}

// readModeFile reads one mode file. Missing or unparseable files resolve
// to ModeUnknown so the next level applies.
func (r *Resolver) readModeFile(path string) Mode {
	//nolint:gosec // G304: path comes from the state directory resolver
	data, err := os.ReadFile(path)
	if err != nil {
		return ModeUnknown
	}

	m, err := ModeString(strings.TrimSpace(string(data)))
	if err != nil {
		r.logger.Debug("unparseable mode file", "path", path, "value", string(data))

		return ModeUnknown
	}

	return m
}

// writeModeFile writes one mode file atomically.
func writeModeFile(path string, m Mode) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(m.String()+"\n"), paths.StateFilePermissions); err != nil {
		return errors.Wrap(err, "writing mode file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "replacing mode file")
	}

	return nil
}
