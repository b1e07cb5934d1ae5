package config

import "time"

// Default values for Telegram configuration.
const (
	// DefaultAPIBaseURL is the Telegram Bot API endpoint.
	DefaultAPIBaseURL = "https://api.telegram.org"

	// DefaultFetchTimeout is the server-side short-poll window for getUpdates.
	DefaultFetchTimeout = 1 * time.Second

	// DefaultRequestTimeout is the overall HTTP request timeout.
	DefaultRequestTimeout = 10 * time.Second
)

// TelegramConfig contains the bot credentials and API timings.
type TelegramConfig struct {
	// BotToken is the Telegram bot token. Required for remote mode.
	BotToken string `json:"bot_token,omitempty" koanf:"bot_token" toml:"bot_token"`

	// ChatID is the chat the bot relays to. Required for remote mode.
	ChatID int64 `json:"chat_id,omitempty" koanf:"chat_id" toml:"chat_id"`

	// APIBaseURL overrides the Bot API endpoint (for testing).
	// Default: "https://api.telegram.org"
	APIBaseURL string `json:"api_base_url,omitempty" koanf:"api_base_url" toml:"api_base_url"`

	// FetchTimeout is the getUpdates short-poll window.
	// Default: "1s"
	FetchTimeout Duration `json:"fetch_timeout,omitempty" koanf:"fetch_timeout" toml:"fetch_timeout"`

	// RequestTimeout is the overall HTTP request timeout.
	// Default: "10s"
	RequestTimeout Duration `json:"request_timeout,omitempty" koanf:"request_timeout" toml:"request_timeout"`
}

// IsConfigured returns true when both credentials are present.
func (t *TelegramConfig) IsConfigured() bool {
	return t != nil && t.BotToken != "" && t.ChatID != 0
}

// GetAPIBaseURL returns the API base URL, falling back to the default.
func (t *TelegramConfig) GetAPIBaseURL() string {
	if t == nil || t.APIBaseURL == "" {
		return DefaultAPIBaseURL
	}

	return t.APIBaseURL
}

// GetFetchTimeout returns the short-poll window, falling back to the default.
func (t *TelegramConfig) GetFetchTimeout() time.Duration {
	if t == nil || t.FetchTimeout == 0 {
		return DefaultFetchTimeout
	}

	return time.Duration(t.FetchTimeout)
}

// GetRequestTimeout returns the HTTP timeout, falling back to the default.
func (t *TelegramConfig) GetRequestTimeout() time.Duration {
	if t == nil || t.RequestTimeout == 0 {
		return DefaultRequestTimeout
	}

	return time.Duration(t.RequestTimeout)
}
