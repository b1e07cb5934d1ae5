package registry

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Route maps one outbound message to the session that sent it, so
// structured replies to that message can be routed without the reply lock.
type Route struct {
	// SessionID is the originating session.
	SessionID string `json:"session_id"`

	// SentAt is when the outbound message was sent.
	SentAt time.Time `json:"sent_at"`
}

// messageMapFile is the on-disk shape of the route map.
type messageMapFile struct {
	// Routes is keyed by outbound message id (stringified for JSON).
	Routes map[string]*Route `json:"routes"`

	// LatestByChat indexes the most recent session per chat id.
	LatestByChat map[string]string `json:"latest_by_chat"`
}

// RecordRoute registers an outbound message as belonging to a session and
// marks that session as the most recent for the chat.
func (r *Registry) RecordRoute(messageID, chatID int64, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.loadMessageMap()
	if err != nil {
		return err
	}

	state.Routes[strconv.FormatInt(messageID, 10)] = &Route{
		SessionID: sessionID,
		SentAt:    r.now(),
	}
	state.LatestByChat[strconv.FormatInt(chatID, 10)] = sessionID

	return r.saveMessageMap(state)
}

// LookupRoute returns the session that sent messageID, or empty when the
// route is unknown.
func (r *Registry) LookupRoute(messageID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.loadMessageMap()
	if err != nil {
		return "", err
	}

	route, ok := state.Routes[strconv.FormatInt(messageID, 10)]
	if !ok {
		return "", nil
	}

	return route.SessionID, nil
}

// LatestSession returns the most recent session for the chat, or empty.
func (r *Registry) LatestSession(chatID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.loadMessageMap()
	if err != nil {
		return "", err
	}

	return state.LatestByChat[strconv.FormatInt(chatID, 10)], nil
}

// SweepRoutes drops routes older than maxAge. The map otherwise grows
// unboundedly. Returns the number of routes removed.
func (r *Registry) SweepRoutes(maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.loadMessageMap()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-maxAge)

	var removed int

	for key, route := range state.Routes {
		if route.SentAt.Before(cutoff) {
			delete(state.Routes, key)

			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	if err := r.saveMessageMap(state); err != nil {
		return 0, err
	}

	r.logger.Debug("swept message routes", "removed", removed)

	return removed, nil
}

// loadMessageMap reads the route map fresh from disk. Missing or corrupt
// files yield an empty map.
func (r *Registry) loadMessageMap() (*messageMapFile, error) {
	state := &messageMapFile{
		Routes:       make(map[string]*Route),
		LatestByChat: make(map[string]string),
	}

	//nolint:gosec // G304: path comes from the state directory resolver
	data, err := os.ReadFile(r.resolver.MessageMapFile())
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}

		return nil, errors.Wrap(err, "reading message map")
	}

	if err := json.Unmarshal(data, state); err != nil {
		r.logger.Debug("message map corrupt, starting fresh", "error", err.Error())

		return &messageMapFile{
			Routes:       make(map[string]*Route),
			LatestByChat: make(map[string]string),
		}, nil
	}

	if state.Routes == nil {
		state.Routes = make(map[string]*Route)
	}

	if state.LatestByChat == nil {
		state.LatestByChat = make(map[string]string)
	}

	return state, nil
}

// saveMessageMap atomically writes the route map.
func (r *Registry) saveMessageMap(state *messageMapFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling message map")
	}

	return atomicWrite(r.resolver.MessageMapFile(), data)
}
