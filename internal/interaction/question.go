package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/hook"
)

const tokenSkip = "skip"

// questionInput mirrors the AskUserQuestion tool input.
type questionInput struct {
	Questions []subQuestion `json:"questions"`
}

// subQuestion is one question in the sequence.
type subQuestion struct {
	Question string `json:"question"`
	Header   string `json:"header,omitempty"`
	Options  []struct {
		Label string `json:"label"`
	} `json:"options,omitempty"`
}

// Question relays an AskUserQuestion sequence to the operator. Each
// sub-question has its own predicate (button press or free-text
// numeric/literal reply); skip transitions out of the whole sequence.
type Question struct {
	deps Deps
	id   string
}

// NewQuestion creates a question sequence with a fresh interaction id.
func NewQuestion(deps Deps) *Question {
	return &Question{
		deps: deps,
		id:   NewInteractionID(),
	}
}

// ID returns the interaction id.
func (q *Question) ID() string { return q.id }

// Run walks the sub-question sequence, one blocking wait each.
func (q *Question) Run(ctx context.Context, hookCtx *hook.Context) (*Outcome, error) {
	var input questionInput
	if err := json.Unmarshal(hookCtx.ToolInput, &input); err != nil {
		return nil, errors.Wrap(err, "decoding question tool input")
	}

	if len(input.Questions) == 0 {
		return &Outcome{Verdict: VerdictSkipped, Reason: "no questions to ask"}, nil
	}

	outcome := &Outcome{Verdict: VerdictAnswered}

	for idx, sub := range input.Questions {
		answer, done, err := q.askOne(ctx, hookCtx, idx, sub)
		if err != nil {
			return nil, err
		}

		if done != nil {
			// Skip, timeout, or cancellation ends the whole sequence;
			// answers gathered so far ride along.
			done.Answers = outcome.Answers

			return done, nil
		}

		outcome.Answers = append(outcome.Answers, *answer)
	}

	outcome.Reason = fmt.Sprintf("%d question(s) answered by operator", len(outcome.Answers))

	return outcome, nil
}

// askOne relays one sub-question and waits for its answer. Returns either
// an answer, or a terminal outcome that ends the sequence.
func (q *Question) askOne(
	ctx context.Context,
	hookCtx *hook.Context,
	idx int,
	sub subQuestion,
) (*Answer, *Outcome, error) {
	chatID := q.deps.Config.GetTelegram().ChatID

	sent, err := q.sendQuestion(ctx, chatID, idx, sub)
	if err != nil {
		return nil, nil, err
	}

	if err := q.deps.Registry.RecordRoute(sent.MessageID, chatID, hookCtx.SessionID); err != nil {
		q.deps.Logger.Error("recording question route failed", "error", err.Error())
	}

	// Free-text numeric/literal answers route through the reply lock for
	// the duration of this sub-question.
	if err := q.deps.Registry.AcquireReplyLock(hookCtx.SessionID, sent.MessageID); err != nil {
		q.deps.Logger.Error("acquiring reply lock failed", "error", err.Error())
	}

	defer func() {
		if err := q.deps.Registry.ReleaseReplyLock(hookCtx.SessionID); err != nil {
			q.deps.Logger.Error("releasing reply lock failed", "error", err.Error())
		}
	}()

	env, err := q.deps.Poller.Poll(ctx, poller.Request{
		Predicate:   q.predicate(idx, chatID, hookCtx.SessionID),
		ClaimantID:  fmt.Sprintf("%s.%d", q.id, idx),
		SessionID:   hookCtx.SessionID,
		Timeout:     q.deps.Config.GetApproval().GetTimeout(),
		CancelModes: []mode.Mode{mode.ModeLocal},
	})

	switch {
	case errors.Is(err, poller.ErrPollTimeout):
		return nil, &Outcome{
			Verdict: VerdictTimedOut,
			Reason:  "no operator answer within the configured timeout",
		}, nil
	case err != nil:
		return nil, nil, err
	case env == nil:
		return nil, &Outcome{Cancelled: true}, nil
	}

	choice, skipped := q.decode(&env.Update, idx, sub)

	acknowledge(ctx, q.deps.API, &env.Update, choice)

	if skipped {
		return nil, &Outcome{
			Verdict: VerdictSkipped,
			Reason:  "operator skipped the question sequence",
		}, nil
	}

	return &Answer{Question: sub.Question, Choice: choice}, nil, nil
}

// sendQuestion pushes one sub-question with its option keyboard.
func (q *Question) sendQuestion(
	ctx context.Context,
	chatID int64,
	idx int,
	sub subQuestion,
) (*telegram.Message, error) {
	var b strings.Builder

	if sub.Header != "" {
		fmt.Fprintf(&b, "❓ %s\n", sub.Header)
	}

	b.WriteString(sub.Question)

	var rows [][]telegram.InlineKeyboardButton

	for optIdx, opt := range sub.Options {
		fmt.Fprintf(&b, "\n%d. %s", optIdx+1, opt.Label)

		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%d. %s", optIdx+1, opt.Label),
			CallbackData: encodeCallback(kindQuestion, q.id, strconv.Itoa(idx), strconv.Itoa(optIdx)),
		}})
	}

	rows = append(rows, []telegram.InlineKeyboardButton{{
		Text:         "⏭ Skip",
		CallbackData: encodeCallback(kindQuestion, q.id, strconv.Itoa(idx), tokenSkip),
	}})

	sent, err := q.deps.API.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        b.String(),
		ReplyMarkup: &telegram.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "sending question %d", idx)
	}

	return sent, nil
}

// predicate matches this sub-question's button presses and owned free text.
func (q *Question) predicate(idx int, chatID int64, sessionID string) msglog.Predicate {
	prefix := encodeCallback(kindQuestion, q.id, strconv.Itoa(idx)) + callbackSeparator
	byText := freeTextPredicate(q.deps.Registry, chatID, sessionID)

	return func(env *msglog.Envelope) bool {
		if data := env.Update.CallbackData(); data != "" {
			return strings.HasPrefix(data, prefix)
		}

		return byText(env)
	}
}

// decode resolves the claimed update to a choice or a skip.
func (q *Question) decode(update *telegram.Update, idx int, sub subQuestion) (string, bool) {
	if data := update.CallbackData(); data != "" {
		_, _, rest, ok := decodeCallback(data)
		if !ok || len(rest) < 2 {
			return "", true
		}

		if rest[1] == tokenSkip {
			return "", true
		}

		optIdx, err := strconv.Atoi(rest[1])
		if err != nil || optIdx < 0 || optIdx >= len(sub.Options) {
			return "", true
		}

		return sub.Options[optIdx].Label, false
	}

	text := strings.TrimSpace(update.Text())

	// Numeric replies select the matching option; anything else is taken
	// literally as the answer.
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(sub.Options) {
		return sub.Options[n-1].Label, false
	}

	for _, opt := range sub.Options {
		if strings.EqualFold(opt.Label, text) {
			return opt.Label, false
		}
	}

	return text, false
}
