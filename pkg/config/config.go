package config

// Config is the root telegate configuration.
type Config struct {
	// Telegram holds bot credentials and API timings.
	Telegram *TelegramConfig `json:"telegram,omitempty" koanf:"telegram" toml:"telegram"`

	// Approval controls the permission-approval interaction.
	Approval *ApprovalConfig `json:"approval,omitempty" koanf:"approval" toml:"approval"`

	// Session controls liveness tracking and routing state.
	Session *SessionConfig `json:"session,omitempty" koanf:"session" toml:"session"`

	// Poll controls the distributed poll loop timings.
	Poll *PollConfig `json:"poll,omitempty" koanf:"poll" toml:"poll"`

	// Logging controls diagnostic logging.
	Logging *LoggingConfig `json:"logging,omitempty" koanf:"logging" toml:"logging"`
}

// GetTelegram returns the Telegram section (never nil).
func (c *Config) GetTelegram() *TelegramConfig {
	if c == nil || c.Telegram == nil {
		return &TelegramConfig{}
	}

	return c.Telegram
}

// GetApproval returns the approval section (never nil).
func (c *Config) GetApproval() *ApprovalConfig {
	if c == nil || c.Approval == nil {
		return &ApprovalConfig{}
	}

	return c.Approval
}

// GetSession returns the session section (never nil).
func (c *Config) GetSession() *SessionConfig {
	if c == nil || c.Session == nil {
		return &SessionConfig{}
	}

	return c.Session
}

// GetPoll returns the poll section (never nil).
func (c *Config) GetPoll() *PollConfig {
	if c == nil || c.Poll == nil {
		return &PollConfig{}
	}

	return c.Poll
}

// GetLogging returns the logging section (never nil).
func (c *Config) GetLogging() *LoggingConfig {
	if c == nil || c.Logging == nil {
		return &LoggingConfig{}
	}

	return c.Logging
}
