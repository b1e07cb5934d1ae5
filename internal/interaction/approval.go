package interaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
)

// Approval verdict tokens carried in callback data.
const (
	tokenApprove  = "approve"
	tokenDeny     = "deny"
	tokenAllowAll = "allow_all"
	tokenDelegate = "delegate"
)

// Approval is the permission-approval interaction:
// pending -> approved | denied | allow_all | delegate | timed_out.
type Approval struct {
	deps Deps
	id   string
}

// NewApproval creates an approval with a fresh interaction id.
func NewApproval(deps Deps) *Approval {
	return &Approval{
		deps: deps,
		id:   NewInteractionID(),
	}
}

// ID returns the interaction id.
func (a *Approval) ID() string { return a.id }

// Run relays the permission request and blocks for the operator verdict.
func (a *Approval) Run(ctx context.Context, hookCtx *hook.Context) (*Outcome, error) {
	approvalCfg := a.deps.Config.GetApproval()

	if MatchesAutoAllow(approvalCfg.GetAutoAllow(), hookCtx) {
		a.deps.Logger.Info("auto-allow pattern matched",
			"interaction_id", a.id,
			"tool", hookCtx.ToolName,
		)

		return &Outcome{
			Verdict:     VerdictApproved,
			Reason:      "matched auto-allow pattern",
			AutoAllowed: true,
		}, nil
	}

	chatID := a.deps.Config.GetTelegram().ChatID

	sent, err := a.send(ctx, hookCtx, chatID, approvalCfg)
	if err != nil {
		return nil, err
	}

	timeout := approvalCfg.GetTimeout()
	if approvalCfg.GetTimeoutAction() == config.TimeoutActionWait {
		// Wait indefinitely; only a mode flip or the operator ends it.
		timeout = 0
	}

	start := a.deps.Now()

	env, err := a.deps.Poller.Poll(ctx, poller.Request{
		Predicate:   a.predicate(sent.MessageID),
		ClaimantID:  a.id,
		SessionID:   hookCtx.SessionID,
		Timeout:     timeout,
		CancelModes: []mode.Mode{mode.ModeLocal},
	})

	switch {
	case errors.Is(err, poller.ErrPollTimeout):
		return a.timedOut(ctx, chatID, sent.MessageID, approvalCfg), nil
	case err != nil:
		return nil, err
	case env == nil:
		// Mode flipped mid-wait; fall through to the host's native path.
		return &Outcome{Cancelled: true}, nil
	}

	outcome := a.decode(&env.Update, start)

	acknowledge(ctx, a.deps.API, &env.Update, string(outcome.Verdict))
	a.edit(ctx, chatID, sent.MessageID, outcome)

	return outcome, nil
}

// send pushes the approval prompt with its verdict keyboard and records
// the outbound route.
func (a *Approval) send(
	ctx context.Context,
	hookCtx *hook.Context,
	chatID int64,
	approvalCfg *config.ApprovalConfig,
) (*telegram.Message, error) {
	sent, err := a.deps.API.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: chatID,
		Text:   a.promptText(hookCtx, approvalCfg),
		ReplyMarkup: &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{
					{Text: "✅ Approve", CallbackData: encodeCallback(kindApproval, a.id, tokenApprove)},
					{Text: "❌ Deny", CallbackData: encodeCallback(kindApproval, a.id, tokenDeny)},
				},
				{
					{Text: "🔓 Allow all", CallbackData: encodeCallback(kindApproval, a.id, tokenAllowAll)},
					{Text: "💻 Delegate", CallbackData: encodeCallback(kindApproval, a.id, tokenDelegate)},
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "sending approval prompt")
	}

	if err := a.deps.Registry.RecordRoute(sent.MessageID, chatID, hookCtx.SessionID); err != nil {
		a.deps.Logger.Error("recording approval route failed", "error", err.Error())
	}

	return sent, nil
}

// predicate matches this approval's callback verdicts and structured
// replies to the prompt message.
func (a *Approval) predicate(sentMessageID int64) msglog.Predicate {
	byCallback := callbackPredicate(kindApproval, a.id)

	return func(env *msglog.Envelope) bool {
		if byCallback(env) {
			return true
		}

		return env.Update.IsReplyTo(sentMessageID) && env.Update.Text() != ""
	}
}

// decode maps the claimed update to a terminal outcome.
func (a *Approval) decode(update *telegram.Update, start time.Time) *Outcome {
	elapsed := humanize.RelTime(start, a.deps.Now(), "", "")

	if data := update.CallbackData(); data != "" {
		_, _, rest, ok := decodeCallback(data)
		if ok && len(rest) > 0 {
			return a.verdictFromToken(rest[0], elapsed)
		}
	}

	// Structured reply to the prompt: a few literal words decide.
	switch strings.ToLower(strings.TrimSpace(update.Text())) {
	case "yes", "y", "approve", "ok":
		return &Outcome{
			Verdict: VerdictApproved,
			Reason:  "approved by operator reply",
		}
	default:
		return &Outcome{
			Verdict: VerdictDenied,
			Reason:  fmt.Sprintf("denied by operator: %s", update.Text()),
		}
	}
}

// verdictFromToken maps a callback token to an outcome.
func (a *Approval) verdictFromToken(token, elapsed string) *Outcome {
	switch token {
	case tokenApprove:
		return &Outcome{Verdict: VerdictApproved, Reason: "approved by operator after " + elapsed}
	case tokenDeny:
		return &Outcome{Verdict: VerdictDenied, Reason: "denied by operator after " + elapsed}
	case tokenAllowAll:
		return &Outcome{Verdict: VerdictAllowAll, Reason: "operator allowed all for this session"}
	case tokenDelegate:
		return &Outcome{Verdict: VerdictDelegate, Reason: "operator delegated to the local flow"}
	default:
		return &Outcome{Verdict: VerdictDenied, Reason: "unrecognized verdict " + token}
	}
}

// timedOut applies the configured timeout action.
func (a *Approval) timedOut(
	ctx context.Context,
	chatID, messageID int64,
	approvalCfg *config.ApprovalConfig,
) *Outcome {
	action := approvalCfg.GetTimeoutAction()
	window := durafmt.Parse(approvalCfg.GetTimeout()).LimitFirstN(2).String()

	verdict := VerdictTimedOut
	if action == config.TimeoutActionAllow {
		verdict = VerdictApproved
	}

	outcome := &Outcome{
		Verdict: verdict,
		Reason: fmt.Sprintf(
			"no operator response within %s; timeout action %q applied",
			window,
			action,
		),
	}

	a.edit(ctx, chatID, messageID, outcome)

	return outcome
}

// edit rewrites the prompt to show the outcome and drop the keyboard so
// stale buttons cannot be pressed.
func (a *Approval) edit(ctx context.Context, chatID, messageID int64, outcome *Outcome) {
	text := fmt.Sprintf("[%s] %s", outcome.Verdict, outcome.Reason)

	if err := a.deps.API.EditMessageText(ctx, chatID, messageID, text); err != nil {
		a.deps.Logger.Debug("editing approval prompt failed", "error", err.Error())
	}
}

// promptText renders the outbound approval prompt.
func (a *Approval) promptText(hookCtx *hook.Context, approvalCfg *config.ApprovalConfig) string {
	var b strings.Builder

	b.WriteString("🔐 Permission request\n")
	fmt.Fprintf(&b, "Tool: %s\n", hookCtx.ToolName)

	if cmd := hookCtx.GetCommand(); cmd != "" {
		fmt.Fprintf(&b, "Command: %s\n", cmd)
	} else if path := hookCtx.GetFilePath(); path != "" {
		fmt.Fprintf(&b, "File: %s\n", path)
	}

	if hookCtx.WorkingDir != "" {
		fmt.Fprintf(&b, "Dir: %s\n", hookCtx.WorkingDir)
	}

	if approvalCfg.GetTimeoutAction() != config.TimeoutActionWait {
		fmt.Fprintf(&b, "Auto-%s in %s",
			approvalCfg.GetTimeoutAction(),
			durafmt.Parse(approvalCfg.GetTimeout()).LimitFirstN(2),
		)
	}

	return b.String()
}
