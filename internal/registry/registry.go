// Package registry tracks active hook sessions, their liveness heartbeats,
// the singleton reply-routing lock, and the outbound message route map.
//
// All state lives in small JSON files under the state directory and is
// re-read on every operation: the process that owns a session mutates its
// entry, but any process's periodic sweep may clean up another session's
// stale entry, so nothing is cached across a suspension point.
package registry

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// Session is one active hook invocation's liveness record.
type Session struct {
	// SessionID is the Claude Code session identifier.
	SessionID string `json:"session_id"`

	// WorkingDir is the session's working directory.
	WorkingDir string `json:"working_dir,omitempty"`

	// StartedAt is when the invocation registered.
	StartedAt time.Time `json:"started_at"`

	// LastHeartbeat is updated every poll tick while waiting.
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// sessionsFile is the on-disk shape of the registry.
type sessionsFile struct {
	Sessions map[string]*Session `json:"sessions"`
}

// Registry manages the session registry files.
type Registry struct {
	mu       sync.Mutex
	resolver *paths.Resolver
	logger   logger.Logger
	now      func() time.Time
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// New creates a Registry over the given state directory resolver.
func New(resolver *paths.Resolver, opts ...Option) *Registry {
	r := &Registry{
		resolver: resolver,
		logger:   logger.NewNoOpLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register creates or refreshes a session entry.
func (r *Registry) Register(sessionID, workingDir string) error {
	if sessionID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.update(func(state *sessionsFile) {
		now := r.now()

		existing, ok := state.Sessions[sessionID]
		if ok {
			existing.LastHeartbeat = now

			return
		}

		state.Sessions[sessionID] = &Session{
			SessionID:     sessionID,
			WorkingDir:    workingDir,
			StartedAt:     now,
			LastHeartbeat: now,
		}
	})
}

// Heartbeat refreshes the session's liveness timestamp.
func (r *Registry) Heartbeat(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.update(func(state *sessionsFile) {
		now := r.now()

		info, ok := state.Sessions[sessionID]
		if !ok {
			state.Sessions[sessionID] = &Session{
				SessionID:     sessionID,
				StartedAt:     now,
				LastHeartbeat: now,
			}

			return
		}

		info.LastHeartbeat = now
	})
}

// ListAbandoned returns sessions whose heartbeat is older than threshold.
func (r *Registry) ListAbandoned(threshold time.Duration) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return nil, err
	}

	var abandoned []Session

	cutoff := r.now().Add(-threshold)

	for _, info := range state.Sessions {
		if info.LastHeartbeat.Before(cutoff) {
			abandoned = append(abandoned, *info)
		}
	}

	return abandoned, nil
}

// Remove deletes a session entry. Removing an absent session is a no-op.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.update(func(state *sessionsFile) {
		delete(state.Sessions, sessionID)
	})
}

// Get returns the session entry, or nil when absent.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.load()
	if err != nil {
		return nil, err
	}

	info, ok := state.Sessions[sessionID]
	if !ok {
		return nil, nil
	}

	copied := *info

	return &copied, nil
}

// update applies mutate to the freshly loaded state and writes it back.
// Callers must hold r.mu.
func (r *Registry) update(mutate func(*sessionsFile)) error {
	state, err := r.load()
	if err != nil {
		return err
	}

	mutate(state)

	return r.save(state)
}

// load reads the sessions file fresh from disk. Missing or corrupt files
// yield an empty registry.
func (r *Registry) load() (*sessionsFile, error) {
	state := &sessionsFile{Sessions: make(map[string]*Session)}

	path := r.resolver.SessionsFile()

	//nolint:gosec // G304: path comes from the state directory resolver
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}

		return nil, errors.Wrap(err, "reading sessions file")
	}

	if err := json.Unmarshal(data, state); err != nil {
		r.logger.Debug("sessions file corrupt, starting fresh", "error", err.Error())

		return &sessionsFile{Sessions: make(map[string]*Session)}, nil
	}

	if state.Sessions == nil {
		state.Sessions = make(map[string]*Session)
	}

	return state, nil
}

// save atomically writes the sessions file.
func (r *Registry) save(state *sessionsFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling sessions")
	}

	return atomicWrite(r.resolver.SessionsFile(), data)
}

// atomicWrite writes data via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, paths.StateFilePermissions); err != nil {
		return errors.Wrap(err, "writing temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "replacing file")
	}

	return nil
}
