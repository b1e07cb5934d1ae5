// Package interaction implements the per-exchange protocols (permission
// approval, question sequences, and stop/continue) as thin
// specializations of the distributed poller. Each defines its own message
// predicate, response decoding, and timeout policy.
package interaction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/registry"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// Verdict is the terminal state of an interaction.
type Verdict string

const (
	// VerdictApproved allows the gated action.
	VerdictApproved Verdict = "approved"

	// VerdictDenied blocks the gated action.
	VerdictDenied Verdict = "denied"

	// VerdictAllowAll allows the action and asks the host to stop gating
	// this session.
	VerdictAllowAll Verdict = "allow_all"

	// VerdictDelegate hands the decision back to the host's native flow.
	VerdictDelegate Verdict = "delegate"

	// VerdictTimedOut means the wait elapsed with no operator response.
	VerdictTimedOut Verdict = "timed_out"

	// VerdictReply carries a free-text continuation from the operator.
	VerdictReply Verdict = "reply"

	// VerdictFinish lets the agent stop.
	VerdictFinish Verdict = "finish"

	// VerdictAbandoned means the stop wait was never answered.
	VerdictAbandoned Verdict = "abandoned"

	// VerdictSkipped means the operator skipped out of a question sequence.
	VerdictSkipped Verdict = "skipped"

	// VerdictAnswered means a question sequence completed with answers.
	VerdictAnswered Verdict = "answered"
)

// Outcome is the structured result reported back to the caller.
type Outcome struct {
	// Verdict is the terminal state.
	Verdict Verdict

	// Reason is the human-readable explanation (shown to the agent).
	Reason string

	// Cancelled is set when the wait was invalidated by a mode change;
	// callers fall through to the host's native handling.
	Cancelled bool

	// AutoAllowed is set when an auto-allow pattern decided locally.
	AutoAllowed bool

	// ReplyText is the operator's free-text content (reply verdicts).
	ReplyText string

	// Answers are the selected options (question sequences).
	Answers []Answer
}

// Answer is one answered sub-question.
type Answer struct {
	// Question is the question text.
	Question string

	// Choice is the selected or typed answer.
	Choice string
}

// Deps bundles the collaborators every interaction needs.
type Deps struct {
	API      telegram.API
	Poller   *poller.Poller
	Registry *registry.Registry
	Config   *config.Config
	Logger   logger.Logger
	Now      func() time.Time
}

// NewInteractionID returns a fresh id scoped to one interaction. Short
// enough to fit callback-data limits alongside the verdict token.
func NewInteractionID() string {
	return uuid.NewString()[:8]
}

// Callback-data kind prefixes.
const (
	kindApproval = "apr"
	kindQuestion = "qst"
	kindStop     = "stp"

	callbackSeparator = "|"
)

// encodeCallback builds callback data "kind|id|part|part...".
func encodeCallback(kind, id string, parts ...string) string {
	all := append([]string{kind, id}, parts...)

	return strings.Join(all, callbackSeparator)
}

// decodeCallback splits callback data into kind, interaction id, and the
// remaining parts. Returns ok=false for foreign or malformed data.
func decodeCallback(data string) (kind, id string, rest []string, ok bool) {
	parts := strings.Split(data, callbackSeparator)
	if len(parts) < 2 {
		return "", "", nil, false
	}

	return parts[0], parts[1], parts[2:], true
}

// callbackPredicate matches callback updates tagged with the given kind
// and interaction id.
func callbackPredicate(kind, id string) msglog.Predicate {
	prefix := kind + callbackSeparator + id + callbackSeparator

	return func(env *msglog.Envelope) bool {
		data := env.Update.CallbackData()

		return data != "" && strings.HasPrefix(data, prefix)
	}
}

// freeTextPredicate matches plain text messages in the configured chat
// that the reply lock routes to sessionID.
func freeTextPredicate(reg *registry.Registry, chatID int64, sessionID string) msglog.Predicate {
	return func(env *msglog.Envelope) bool {
		update := &env.Update

		if update.Message == nil || update.Message.Text == "" {
			return false
		}

		if update.ChatID() != chatID {
			return false
		}

		// Bot commands are never interaction answers.
		if strings.HasPrefix(update.Message.Text, "/") {
			return false
		}

		owned, err := reg.OwnedBy(sessionID, update)
		if err != nil {
			return false
		}

		return owned
	}
}

// acknowledge answers a pressed callback button, best effort.
func acknowledge(ctx context.Context, api telegram.API, update *telegram.Update, text string) {
	if update.CallbackQuery == nil {
		return
	}

	_ = api.AnswerCallbackQuery(ctx, update.CallbackQuery.ID, text)
}
