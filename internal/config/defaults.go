// Package config provides internal configuration loading and processing.
package config

import (
	"github.com/smykla-skalski/telegate/pkg/config"
)

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() *config.Config {
	return &config.Config{
		Telegram: &config.TelegramConfig{
			APIBaseURL:     config.DefaultAPIBaseURL,
			FetchTimeout:   config.Duration(config.DefaultFetchTimeout),
			RequestTimeout: config.Duration(config.DefaultRequestTimeout),
		},
		Approval: &config.ApprovalConfig{
			Timeout:       config.Duration(config.DefaultApprovalTimeout),
			TimeoutAction: string(config.DefaultTimeoutAction),
		},
		Session: &config.SessionConfig{
			HeartbeatInterval: config.Duration(config.DefaultHeartbeatInterval),
			LivenessThreshold: config.Duration(config.DefaultLivenessThreshold),
			SweepInterval:     config.Duration(config.DefaultSweepInterval),
			MessageMapMaxAge:  config.Duration(config.DefaultMessageMapMaxAge),
		},
		Poll: &config.PollConfig{
			MinDelay:      config.Duration(config.DefaultMinDelay),
			MaxDelay:      config.Duration(config.DefaultMaxDelay),
			ErrorBackoff:  config.Duration(config.DefaultErrorBackoff),
			MaxLogRecords: config.DefaultMaxLogRecords,
		},
		Logging: &config.LoggingConfig{
			Level: config.DefaultLogLevel,
		},
	}
}

// defaultsToMap flattens the defaults into a koanf confmap.
func defaultsToMap() map[string]any {
	return map[string]any{
		"telegram.api_base_url":       config.DefaultAPIBaseURL,
		"telegram.fetch_timeout":      config.DefaultFetchTimeout.String(),
		"telegram.request_timeout":    config.DefaultRequestTimeout.String(),
		"approval.timeout":            config.DefaultApprovalTimeout.String(),
		"approval.timeout_action":     string(config.DefaultTimeoutAction),
		"session.heartbeat_interval":  config.DefaultHeartbeatInterval.String(),
		"session.liveness_threshold":  config.DefaultLivenessThreshold.String(),
		"session.sweep_interval":      config.DefaultSweepInterval.String(),
		"session.message_map_max_age": config.DefaultMessageMapMaxAge.String(),
		"poll.min_delay":              config.DefaultMinDelay.String(),
		"poll.max_delay":              config.DefaultMaxDelay.String(),
		"poll.error_backoff":          config.DefaultErrorBackoff.String(),
		"poll.max_log_records":        config.DefaultMaxLogRecords,
		"logging.level":               config.DefaultLogLevel,
	}
}
