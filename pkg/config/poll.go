package config

import "time"

// Default values for poller configuration.
const (
	// DefaultMinDelay is the fast re-poll delay after a tick that saw traffic.
	DefaultMinDelay = 50 * time.Millisecond

	// DefaultMaxDelay caps the idle backoff between ticks.
	DefaultMaxDelay = 500 * time.Millisecond

	// DefaultErrorBackoff is the delay after a remote fetch failure.
	DefaultErrorBackoff = 500 * time.Millisecond

	// DefaultMaxLogRecords is the message-log retention used by the trim sweep.
	DefaultMaxLogRecords = 1000
)

// PollConfig controls the distributed poll loop timings.
type PollConfig struct {
	// MinDelay is the fast re-poll delay on ticks with new messages.
	// Default: "50ms"
	MinDelay Duration `json:"min_delay,omitempty" koanf:"min_delay" toml:"min_delay"`

	// MaxDelay caps the backoff on consecutive empty ticks.
	// Default: "500ms"
	MaxDelay Duration `json:"max_delay,omitempty" koanf:"max_delay" toml:"max_delay"`

	// ErrorBackoff is the delay after a remote fetch failure.
	// Default: "500ms"
	ErrorBackoff Duration `json:"error_backoff,omitempty" koanf:"error_backoff" toml:"error_backoff"`

	// MaxLogRecords is how many message-log records the trim sweep keeps.
	// Default: 1000
	MaxLogRecords int `json:"max_log_records,omitempty" koanf:"max_log_records" toml:"max_log_records"`
}

// GetMinDelay returns the fast re-poll delay.
func (p *PollConfig) GetMinDelay() time.Duration {
	if p == nil || p.MinDelay == 0 {
		return DefaultMinDelay
	}

	return time.Duration(p.MinDelay)
}

// GetMaxDelay returns the idle backoff cap.
func (p *PollConfig) GetMaxDelay() time.Duration {
	if p == nil || p.MaxDelay == 0 {
		return DefaultMaxDelay
	}

	return time.Duration(p.MaxDelay)
}

// GetErrorBackoff returns the fetch-error backoff.
func (p *PollConfig) GetErrorBackoff() time.Duration {
	if p == nil || p.ErrorBackoff == 0 {
		return DefaultErrorBackoff
	}

	return time.Duration(p.ErrorBackoff)
}

// GetMaxLogRecords returns the message-log retention.
func (p *PollConfig) GetMaxLogRecords() int {
	if p == nil || p.MaxLogRecords <= 0 {
		return DefaultMaxLogRecords
	}

	return p.MaxLogRecords
}
