package config

import "time"

// Default values for approval configuration.
const (
	// DefaultApprovalTimeout is how long an approval waits for the operator.
	DefaultApprovalTimeout = 5 * time.Minute

	// DefaultTimeoutAction is applied when the wait times out.
	DefaultTimeoutAction = TimeoutActionDeny
)

// ApprovalConfig controls the permission-approval interaction.
type ApprovalConfig struct {
	// Timeout is the maximum wait for an operator decision.
	// Default: "5m"
	Timeout Duration `json:"timeout,omitempty" koanf:"timeout" toml:"timeout"`

	// TimeoutAction is applied when the wait times out: deny, allow, or wait.
	// Default: "deny"
	TimeoutAction string `json:"timeout_action,omitempty" koanf:"timeout_action" toml:"timeout_action"`

	// AutoAllow lists tool patterns approved locally without asking the
	// operator. Pattern form: "Tool(glob)" matched against the tool name
	// and its command or file path, e.g. "Bash(git status*)" or "Read(**)".
	AutoAllow []string `json:"auto_allow,omitempty" koanf:"auto_allow" toml:"auto_allow"`
}

// GetTimeout returns the approval timeout, falling back to the default.
func (a *ApprovalConfig) GetTimeout() time.Duration {
	if a == nil || a.Timeout == 0 {
		return DefaultApprovalTimeout
	}

	return time.Duration(a.Timeout)
}

// GetTimeoutAction returns the timeout action, falling back to the default.
// Invalid values fall back to the default as well; validation reports them
// at load time.
func (a *ApprovalConfig) GetTimeoutAction() TimeoutAction {
	if a == nil || a.TimeoutAction == "" {
		return DefaultTimeoutAction
	}

	action, err := ParseTimeoutAction(a.TimeoutAction)
	if err != nil {
		return DefaultTimeoutAction
	}

	return action
}

// GetAutoAllow returns the auto-allow pattern list.
func (a *ApprovalConfig) GetAutoAllow() []string {
	if a == nil {
		return nil
	}

	return a.AutoAllow
}
