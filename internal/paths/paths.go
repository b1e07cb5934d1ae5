// Package paths resolves telegate's state directory and the files inside it.
package paths

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	// StateDirEnv overrides the state directory location.
	StateDirEnv = "TELEGATE_STATE_DIR"

	// DefaultStateDirName is the directory under the user home.
	DefaultStateDirName = ".telegate"

	// StateDirPermissions is the permission mode for the state directory.
	StateDirPermissions = 0o700

	// StateFilePermissions is the permission mode for state files.
	StateFilePermissions = 0o600
)

// Well-known file names inside the state directory.
const (
	MessagesLogName   = "messages.jsonl"
	ClaimsLogName     = "claims.jsonl"
	SessionsFileName  = "sessions.json"
	ReplyLockFileName = "reply_lock.json"
	MessageMapName    = "message_map.json"
	HistoryLogName    = "history.jsonl"
	LogFileName       = "telegate.log"
	ClaimLockName     = "claim.lock"
	GlobalModeName    = "mode"
)

// Resolver resolves paths inside the state directory.
type Resolver struct {
	stateDir string
}

// NewResolver resolves the state directory from the environment or the
// user home, creating it when absent.
func NewResolver() (*Resolver, error) {
	dir := os.Getenv(StateDirEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving home directory")
		}

		dir = filepath.Join(home, DefaultStateDirName)
	}

	if err := os.MkdirAll(dir, StateDirPermissions); err != nil {
		return nil, errors.Wrap(err, "creating state directory")
	}

	return &Resolver{stateDir: dir}, nil
}

// NewResolverWithDir uses a fixed directory (for testing).
func NewResolverWithDir(dir string) *Resolver {
	return &Resolver{stateDir: dir}
}

// StateDir returns the state directory path.
func (r *Resolver) StateDir() string { return r.stateDir }

// MessagesLog returns the inbound message log path.
func (r *Resolver) MessagesLog() string { return filepath.Join(r.stateDir, MessagesLogName) }

// ClaimsLog returns the claim record log path.
func (r *Resolver) ClaimsLog() string { return filepath.Join(r.stateDir, ClaimsLogName) }

// SessionsFile returns the session registry path.
func (r *Resolver) SessionsFile() string { return filepath.Join(r.stateDir, SessionsFileName) }

// ReplyLockFile returns the singleton reply lock path.
func (r *Resolver) ReplyLockFile() string { return filepath.Join(r.stateDir, ReplyLockFileName) }

// MessageMapFile returns the outbound message map path.
func (r *Resolver) MessageMapFile() string { return filepath.Join(r.stateDir, MessageMapName) }

// HistoryLog returns the decision history log path.
func (r *Resolver) HistoryLog() string { return filepath.Join(r.stateDir, HistoryLogName) }

// LogFile returns the diagnostic log path.
func (r *Resolver) LogFile() string { return filepath.Join(r.stateDir, LogFileName) }

// ClaimLock returns the cross-process claim lock path.
func (r *Resolver) ClaimLock() string { return filepath.Join(r.stateDir, ClaimLockName) }

// GlobalModeFile returns the global operating mode file path.
func (r *Resolver) GlobalModeFile() string { return filepath.Join(r.stateDir, GlobalModeName) }

// SessionModeFile returns the per-session operating mode file path.
func (r *Resolver) SessionModeFile(sessionID string) string {
	return filepath.Join(r.stateDir, "mode."+sessionID)
}

// ExpandHome expands a leading ~/ in path against the user home directory.
func ExpandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}
