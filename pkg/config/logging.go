package config

// Default values for logging configuration.
const (
	// DefaultLogLevel is the default log verbosity.
	DefaultLogLevel = "info"
)

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is the log verbosity: debug, info, or error.
	// Default: "info"
	Level string `json:"level,omitempty" koanf:"level" toml:"level"`

	// File overrides the log file path. Empty uses the state directory.
	File string `json:"file,omitempty" koanf:"file" toml:"file"`
}

// GetLevel returns the log level string, falling back to the default.
func (l *LoggingConfig) GetLevel() string {
	if l == nil || l.Level == "" {
		return DefaultLogLevel
	}

	return l.Level
}

// GetFile returns the log file override, or empty for the default location.
func (l *LoggingConfig) GetFile() string {
	if l == nil {
		return ""
	}

	return l.File
}
