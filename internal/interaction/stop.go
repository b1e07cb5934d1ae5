package interaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/hook"
)

// Stop verdict tokens carried in callback data.
const (
	tokenReply  = "reply"
	tokenFinish = "finish"
)

// Stop is the stop/continue interaction:
// waiting -> reply | finish | abandoned. A reply verdict transitions into
// a second wait, scoped by the reply lock, for the free-text continuation.
type Stop struct {
	deps Deps
	id   string
}

// NewStop creates a stop/continue interaction with a fresh id.
func NewStop(deps Deps) *Stop {
	return &Stop{
		deps: deps,
		id:   NewInteractionID(),
	}
}

// ID returns the interaction id.
func (s *Stop) ID() string { return s.id }

// Run notifies the operator that the agent finished and waits for either
// a continuation or permission to stop.
func (s *Stop) Run(ctx context.Context, hookCtx *hook.Context) (*Outcome, error) {
	chatID := s.deps.Config.GetTelegram().ChatID

	sent, err := s.send(ctx, hookCtx, chatID)
	if err != nil {
		return nil, err
	}

	env, err := s.deps.Poller.Poll(ctx, poller.Request{
		Predicate:   s.predicate(sent.MessageID, chatID, hookCtx.SessionID),
		ClaimantID:  s.id,
		SessionID:   hookCtx.SessionID,
		Timeout:     s.deps.Config.GetApproval().GetTimeout(),
		CancelModes: []mode.Mode{mode.ModeLocal, mode.ModeReadonly},
	})

	switch {
	case errors.Is(err, poller.ErrPollTimeout):
		return &Outcome{
			Verdict: VerdictAbandoned,
			Reason:  "operator never answered the stop notification",
		}, nil
	case err != nil:
		return nil, err
	case env == nil:
		return &Outcome{Cancelled: true}, nil
	}

	return s.resolve(ctx, hookCtx, chatID, sent.MessageID, env)
}

// resolve maps the first wait's update to a terminal outcome, entering the
// second free-text wait when the operator pressed Reply.
func (s *Stop) resolve(
	ctx context.Context,
	hookCtx *hook.Context,
	chatID, sentMessageID int64,
	env *msglog.Envelope,
) (*Outcome, error) {
	update := &env.Update

	// Direct free text counts as the continuation itself; no second wait.
	if text := update.Text(); text != "" {
		return &Outcome{
			Verdict:   VerdictReply,
			Reason:    "operator sent a continuation",
			ReplyText: text,
		}, nil
	}

	_, _, rest, ok := decodeCallback(update.CallbackData())
	if !ok || len(rest) == 0 || rest[0] == tokenFinish {
		acknowledge(ctx, s.deps.API, update, "finished")

		return &Outcome{Verdict: VerdictFinish, Reason: "operator let the agent stop"}, nil
	}

	acknowledge(ctx, s.deps.API, update, "send your instruction")

	return s.awaitReply(ctx, hookCtx, chatID, sentMessageID)
}

// awaitReply runs the second wait for the free-text continuation, holding
// the reply lock so loose chat text routes to this session.
func (s *Stop) awaitReply(
	ctx context.Context,
	hookCtx *hook.Context,
	chatID, boundMessageID int64,
) (*Outcome, error) {
	if err := s.deps.Registry.AcquireReplyLock(hookCtx.SessionID, boundMessageID); err != nil {
		return nil, errors.Wrap(err, "acquiring reply lock")
	}

	defer func() {
		if err := s.deps.Registry.ReleaseReplyLock(hookCtx.SessionID); err != nil {
			s.deps.Logger.Error("releasing reply lock failed", "error", err.Error())
		}
	}()

	env, err := s.deps.Poller.Poll(ctx, poller.Request{
		Predicate:   freeTextPredicate(s.deps.Registry, chatID, hookCtx.SessionID),
		ClaimantID:  s.id + ".reply",
		SessionID:   hookCtx.SessionID,
		Timeout:     s.deps.Config.GetApproval().GetTimeout(),
		CancelModes: []mode.Mode{mode.ModeLocal, mode.ModeReadonly},
	})

	switch {
	case errors.Is(err, poller.ErrPollTimeout):
		return &Outcome{
			Verdict: VerdictAbandoned,
			Reason:  "operator pressed reply but never sent the text",
		}, nil
	case err != nil:
		return nil, err
	case env == nil:
		return &Outcome{Cancelled: true}, nil
	}

	return &Outcome{
		Verdict:   VerdictReply,
		Reason:    "operator sent a continuation",
		ReplyText: env.Update.Text(),
	}, nil
}

// send pushes the stop notification with its Reply/Finish keyboard.
func (s *Stop) send(
	ctx context.Context,
	hookCtx *hook.Context,
	chatID int64,
) (*telegram.Message, error) {
	var b strings.Builder

	b.WriteString("🏁 Agent finished its turn")

	if hookCtx.WorkingDir != "" {
		fmt.Fprintf(&b, "\nDir: %s", hookCtx.WorkingDir)
	}

	b.WriteString("\nReply with an instruction to continue, or press Finish.")

	sent, err := s.deps.API.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: chatID,
		Text:   b.String(),
		ReplyMarkup: &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: "💬 Reply", CallbackData: encodeCallback(kindStop, s.id, tokenReply)},
				{Text: "✔️ Finish", CallbackData: encodeCallback(kindStop, s.id, tokenFinish)},
			}},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "sending stop notification")
	}

	if err := s.deps.Registry.RecordRoute(sent.MessageID, chatID, hookCtx.SessionID); err != nil {
		s.deps.Logger.Error("recording stop route failed", "error", err.Error())
	}

	return sent, nil
}

// predicate matches this stop interaction's buttons, structured replies to
// the notification, and owned free text.
func (s *Stop) predicate(sentMessageID, chatID int64, sessionID string) msglog.Predicate {
	byCallback := callbackPredicate(kindStop, s.id)
	byText := freeTextPredicate(s.deps.Registry, chatID, sessionID)

	return func(env *msglog.Envelope) bool {
		if byCallback(env) {
			return true
		}

		if env.Update.IsReplyTo(sentMessageID) && env.Update.Text() != "" {
			return true
		}

		return byText(env)
	}
}
