package config

import "time"

// Default values for session configuration.
const (
	// DefaultHeartbeatInterval is the poller tick cadence, which doubles as
	// the heartbeat cadence.
	DefaultHeartbeatInterval = 1 * time.Second

	// DefaultLivenessThreshold is how long a heartbeat may be stale before
	// the session is judged abandoned.
	DefaultLivenessThreshold = 2 * time.Second

	// DefaultSweepInterval is the cadence of abandonment sweeps inside the
	// poll loop.
	DefaultSweepInterval = 1 * time.Minute

	// DefaultMessageMapMaxAge is how long outbound message routes are kept.
	DefaultMessageMapMaxAge = 24 * time.Hour
)

// SessionConfig controls session liveness tracking and routing state.
type SessionConfig struct {
	// HeartbeatInterval is the heartbeat cadence while waiting.
	// Default: "1s"
	HeartbeatInterval Duration `json:"heartbeat_interval,omitempty" koanf:"heartbeat_interval" toml:"heartbeat_interval"`

	// LivenessThreshold is the stale-heartbeat abandonment threshold.
	// Default: "2s"
	LivenessThreshold Duration `json:"liveness_threshold,omitempty" koanf:"liveness_threshold" toml:"liveness_threshold"`

	// SweepInterval is the abandonment sweep cadence.
	// Default: "1m"
	SweepInterval Duration `json:"sweep_interval,omitempty" koanf:"sweep_interval" toml:"sweep_interval"`

	// MessageMapMaxAge is the retention for outbound message routes.
	// Default: "24h"
	MessageMapMaxAge Duration `json:"message_map_max_age,omitempty" koanf:"message_map_max_age" toml:"message_map_max_age"`
}

// GetHeartbeatInterval returns the heartbeat cadence.
func (s *SessionConfig) GetHeartbeatInterval() time.Duration {
	if s == nil || s.HeartbeatInterval == 0 {
		return DefaultHeartbeatInterval
	}

	return time.Duration(s.HeartbeatInterval)
}

// GetLivenessThreshold returns the abandonment threshold.
func (s *SessionConfig) GetLivenessThreshold() time.Duration {
	if s == nil || s.LivenessThreshold == 0 {
		return DefaultLivenessThreshold
	}

	return time.Duration(s.LivenessThreshold)
}

// GetSweepInterval returns the abandonment sweep cadence.
func (s *SessionConfig) GetSweepInterval() time.Duration {
	if s == nil || s.SweepInterval == 0 {
		return DefaultSweepInterval
	}

	return time.Duration(s.SweepInterval)
}

// GetMessageMapMaxAge returns the outbound route retention.
func (s *SessionConfig) GetMessageMapMaxAge() time.Duration {
	if s == nil || s.MessageMapMaxAge == 0 {
		return DefaultMessageMapMaxAge
	}

	return time.Duration(s.MessageMapMaxAge)
}
