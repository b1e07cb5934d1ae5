// Package config provides configuration schema types for telegate.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNegativeDuration is returned when a negative duration is provided.
	ErrNegativeDuration = errors.New("duration must be non-negative")

	// ErrInvalidTimeoutAction is returned when an invalid timeout action is provided.
	ErrInvalidTimeoutAction = errors.New("invalid timeout action")
)

// Duration wraps time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "invalid duration")
	}

	if dur < 0 {
		return errors.Wrapf(ErrNegativeDuration, "got %s", dur)
	}

	*d = Duration(dur)

	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML serialization.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ToDuration converts Duration to time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// TimeoutAction controls what an approval does when its wait times out.
type TimeoutAction string

const (
	// TimeoutActionDeny denies the request after the timeout.
	TimeoutActionDeny TimeoutAction = "deny"

	// TimeoutActionAllow allows the request after the timeout.
	TimeoutActionAllow TimeoutAction = "allow"

	// TimeoutActionWait keeps waiting indefinitely.
	TimeoutActionWait TimeoutAction = "wait"
)

// ParseTimeoutAction parses a string into a TimeoutAction value.
func ParseTimeoutAction(s string) (TimeoutAction, error) {
	switch TimeoutAction(s) {
	case TimeoutActionDeny, TimeoutActionAllow, TimeoutActionWait:
		return TimeoutAction(s), nil
	default:
		return "", errors.Wrapf(
			ErrInvalidTimeoutAction,
			"%q, must be %q, %q, or %q",
			s,
			TimeoutActionDeny,
			TimeoutActionAllow,
			TimeoutActionWait,
		)
	}
}
