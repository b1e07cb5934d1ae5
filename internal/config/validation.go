package config

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/pkg/config"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidOption is returned when an option value is invalid.
	ErrInvalidOption = errors.New("invalid option value")
)

// validLogLevels are the accepted logging.level values.
var validLogLevels = []string{"debug", "info", "error"}

// Validator validates configuration semantics.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *config.Config) error {
	if cfg == nil {
		return errors.WithMessage(ErrInvalidConfig, "config is nil")
	}

	var validationErrors []error

	if err := v.validateTelegram(cfg.Telegram); err != nil {
		validationErrors = append(validationErrors, err)
	}

	if err := v.validateApproval(cfg.Approval); err != nil {
		validationErrors = append(validationErrors, err)
	}

	if err := v.validatePoll(cfg.Poll); err != nil {
		validationErrors = append(validationErrors, err)
	}

	if err := v.validateLogging(cfg.Logging); err != nil {
		validationErrors = append(validationErrors, err)
	}

	if len(validationErrors) > 0 {
		combined := validationErrors[0]
		for _, err := range validationErrors[1:] {
			combined = errors.CombineErrors(combined, err)
		}

		return errors.WithSecondaryError(
			errors.Wrapf(
				ErrInvalidConfig,
				"validation failed with %d error(s)",
				len(validationErrors),
			),
			combined,
		)
	}

	return nil
}

// validateTelegram requires the chat id whenever a token is set; a token
// without a destination chat can never deliver.
func (*Validator) validateTelegram(cfg *config.TelegramConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.BotToken != "" && cfg.ChatID == 0 {
		return errors.WithMessage(
			ErrInvalidOption,
			"telegram.chat_id is required when telegram.bot_token is set",
		)
	}

	return nil
}

func (*Validator) validateApproval(cfg *config.ApprovalConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.TimeoutAction != "" {
		if _, err := config.ParseTimeoutAction(cfg.TimeoutAction); err != nil {
			return errors.Wrap(err, "approval.timeout_action")
		}
	}

	return nil
}

func (*Validator) validatePoll(cfg *config.PollConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.MinDelay.ToDuration() > 0 && cfg.MaxDelay.ToDuration() > 0 &&
		cfg.MinDelay.ToDuration() > cfg.MaxDelay.ToDuration() {
		return errors.WithMessagef(
			ErrInvalidOption,
			"poll.min_delay (%s) must not exceed poll.max_delay (%s)",
			cfg.MinDelay,
			cfg.MaxDelay,
		)
	}

	return nil
}

func (*Validator) validateLogging(cfg *config.LoggingConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.Level != "" && !slices.Contains(validLogLevels, cfg.Level) {
		return errors.WithMessagef(
			ErrInvalidOption,
			"logging.level %q, must be one of %v",
			cfg.Level,
			validLogLevels,
		)
	}

	return nil
}
