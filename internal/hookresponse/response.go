// Package hookresponse builds structured JSON responses for Claude Code hooks.
package hookresponse

// HookResponse is the top-level JSON structure written to stdout. Absence
// of any output means "no opinion; fall through to the host's native path".
type HookResponse struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`

	// Decision/Reason drive Stop hooks: decision "block" with a reason
	// makes the agent continue with that instruction.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// HookSpecificOutput carries the permission decision for PreToolUse hooks.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`                 // "allow", "deny", or "ask"
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"` // shown to the agent
	AdditionalContext        string `json:"additionalContext,omitempty"`
}

// Permission decision values.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionAsk   = "ask"

	// StopDecisionBlock keeps the agent going with the reason as its
	// next instruction.
	StopDecisionBlock = "block"

	// PreToolUseEventName is the hookEventName for permission decisions.
	PreToolUseEventName = "PreToolUse"
)

// Permission builds a PreToolUse decision response.
func Permission(decision, reason, additionalContext string) *HookResponse {
	return &HookResponse{
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:            PreToolUseEventName,
			PermissionDecision:       decision,
			PermissionDecisionReason: reason,
			AdditionalContext:        additionalContext,
		},
	}
}

// Continue builds a Stop response that keeps the agent going with the
// given instruction.
func Continue(instruction string) *HookResponse {
	return &HookResponse{
		Decision: StopDecisionBlock,
		Reason:   instruction,
	}
}
