// Package gate is the top-level hook handler: it resolves the operating
// mode, dispatches the hook context to the matching interaction state
// machine, and maps the terminal outcome to a host action and decision
// response.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/smykla-skalski/telegate/internal/claim"
	"github.com/smykla-skalski/telegate/internal/hookresponse"
	"github.com/smykla-skalski/telegate/internal/interaction"
	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/registry"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// Action tells the host-integration shim how to terminate.
type Action int

const (
	// ActionNoOpinion writes nothing; the host falls through to its
	// native path.
	ActionNoOpinion Action = iota

	// ActionRespond writes the decision response to stdout.
	ActionRespond

	// ActionContinue writes a Stop response that keeps the agent going.
	ActionContinue

	// ActionStop lets the agent finish.
	ActionStop
)

// Result is the structured outcome of one hook invocation.
type Result struct {
	// Action tells the shim what to do.
	Action Action

	// Response is written to stdout for ActionRespond and ActionContinue.
	Response *hookresponse.HookResponse
}

// Gate wires the claiming/routing core under one handler.
type Gate struct {
	cfg      *config.Config
	api      telegram.API
	registry *registry.Registry
	modes    *mode.Resolver
	poll     *poller.Poller
	history  *History
	logger   logger.Logger
	now      func() time.Time
}

// Option configures the Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(g *Gate) {
		if fn != nil {
			g.now = fn
		}
	}
}

// WithAPI overrides the Telegram API implementation (for testing).
func WithAPI(api telegram.API) Option {
	return func(g *Gate) {
		if api != nil {
			g.api = api
		}
	}
}

// New assembles the Gate and its collaborators over the state directory.
// workDir anchors project-level mode resolution.
func New(
	cfg *config.Config,
	resolver *paths.Resolver,
	workDir string,
	opts ...Option,
) (*Gate, error) {
	g := &Gate{
		cfg:    cfg,
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.api == nil {
		client, err := telegram.NewClient(cfg.GetTelegram(), telegram.WithLogger(g.logger))
		if err != nil {
			return nil, err
		}

		g.api = client
	}

	log := msglog.New(
		resolver.MessagesLog(),
		resolver.ClaimsLog(),
		msglog.WithLogger(g.logger),
		msglog.WithTimeFunc(g.now),
	)

	coordinator := claim.NewCoordinator(
		log,
		resolver.ClaimLock(),
		claim.WithLogger(g.logger),
		claim.WithTimeFunc(g.now),
	)

	g.registry = registry.New(
		resolver,
		registry.WithLogger(g.logger),
		registry.WithTimeFunc(g.now),
	)

	g.modes = mode.NewResolver(resolver, workDir, mode.WithLogger(g.logger))

	g.poll = poller.New(
		poller.Deps{
			API:      g.api,
			Log:      log,
			Claims:   coordinator,
			Registry: g.registry,
			Modes:    g.modes,
		},
		cfg,
		poller.WithLogger(g.logger),
		poller.WithTimeFunc(g.now),
	)

	g.history = NewHistory(resolver.HistoryLog(), g.logger, g.now)

	return g, nil
}

// Handle processes one hook invocation end to end.
func (g *Gate) Handle(ctx context.Context, hookCtx *hook.Context) (*Result, error) {
	current := g.modes.Current(hookCtx.SessionID)

	g.logger.Info("hook received",
		"event", hookCtx.EventType,
		"tool", hookCtx.ToolName,
		"session_id", hookCtx.SessionID,
		"mode", current,
	)

	if current == mode.ModeLocal {
		return &Result{Action: ActionNoOpinion}, nil
	}

	switch hookCtx.EventType {
	case hook.EventTypePreToolUse:
		return g.handlePreToolUse(ctx, hookCtx, current)
	case hook.EventTypeStop:
		return g.handleStop(ctx, hookCtx, current)
	case hook.EventTypeNotification:
		return g.handleNotification(ctx, hookCtx), nil
	case hook.EventTypeUnknown:
		return &Result{Action: ActionNoOpinion}, nil
	default:
		return &Result{Action: ActionNoOpinion}, nil
	}
}

// handlePreToolUse runs the approval (or question) interaction.
func (g *Gate) handlePreToolUse(
	ctx context.Context,
	hookCtx *hook.Context,
	current mode.Mode,
) (*Result, error) {
	if hookCtx.IsQuestionTool() {
		if current != mode.ModeRemote {
			return &Result{Action: ActionNoOpinion}, nil
		}

		return g.runQuestion(ctx, hookCtx)
	}

	if current == mode.ModeReadonly {
		// Never blocks for input; deny locally and tell the operator.
		g.notify(ctx, fmt.Sprintf("⛔ Denied (readonly): %s", hookCtx.ToolName))

		return &Result{
			Action: ActionRespond,
			Response: hookresponse.Permission(
				hookresponse.DecisionDeny,
				"telegate readonly mode denies tool execution",
				"",
			),
		}, nil
	}

	return g.runApproval(ctx, hookCtx)
}

// runApproval relays the permission request and maps the verdict.
func (g *Gate) runApproval(ctx context.Context, hookCtx *hook.Context) (*Result, error) {
	g.track(hookCtx)
	defer g.untrack(hookCtx)

	approval := interaction.NewApproval(g.deps())

	start := g.now()

	outcome, err := approval.Run(ctx, hookCtx)
	if err != nil {
		return nil, err
	}

	g.history.Record(approval.ID(), hookCtx, outcome, g.now().Sub(start))

	if outcome.Cancelled {
		return &Result{Action: ActionNoOpinion}, nil
	}

	switch outcome.Verdict {
	case interaction.VerdictApproved:
		return respond(hookresponse.DecisionAllow, outcome.Reason, ""), nil
	case interaction.VerdictAllowAll:
		// The session drops to local mode; the host's native flow takes
		// over for the rest of the session.
		if err := g.modes.SetSession(hookCtx.SessionID, mode.ModeLocal); err != nil {
			g.logger.Error("setting session mode failed", "error", err.Error())
		}

		return respond(hookresponse.DecisionAllow, outcome.Reason,
			"operator disabled remote gating for this session"), nil
	case interaction.VerdictDelegate:
		return respond(hookresponse.DecisionAsk, outcome.Reason, ""), nil
	case interaction.VerdictDenied, interaction.VerdictTimedOut:
		return respond(hookresponse.DecisionDeny, outcome.Reason, ""), nil
	default:
		return &Result{Action: ActionNoOpinion}, nil
	}
}

// runQuestion relays an AskUserQuestion sequence.
func (g *Gate) runQuestion(ctx context.Context, hookCtx *hook.Context) (*Result, error) {
	g.track(hookCtx)
	defer g.untrack(hookCtx)

	question := interaction.NewQuestion(g.deps())

	start := g.now()

	outcome, err := question.Run(ctx, hookCtx)
	if err != nil {
		return nil, err
	}

	g.history.Record(question.ID(), hookCtx, outcome, g.now().Sub(start))

	if outcome.Cancelled || outcome.Verdict != interaction.VerdictAnswered {
		// Skip and timeout fall through so the host can ask natively.
		return &Result{Action: ActionNoOpinion}, nil
	}

	// The tool never runs locally; the answers travel back to the agent
	// in the decision reason.
	reason := "Answered remotely via telegate; do not re-ask.\n"
	for _, answer := range outcome.Answers {
		reason += fmt.Sprintf("Q: %s\nA: %s\n", answer.Question, answer.Choice)
	}

	return respond(hookresponse.DecisionDeny, reason, ""), nil
}

// handleStop runs the stop/continue interaction.
func (g *Gate) handleStop(
	ctx context.Context,
	hookCtx *hook.Context,
	current mode.Mode,
) (*Result, error) {
	if current != mode.ModeRemote {
		return &Result{Action: ActionNoOpinion}, nil
	}

	if hookCtx.StopHookActive {
		// A continuation we injected is already running; never loop.
		return &Result{Action: ActionNoOpinion}, nil
	}

	g.track(hookCtx)
	defer g.untrack(hookCtx)

	stop := interaction.NewStop(g.deps())

	start := g.now()

	outcome, err := stop.Run(ctx, hookCtx)
	if err != nil {
		return nil, err
	}

	g.history.Record(stop.ID(), hookCtx, outcome, g.now().Sub(start))

	switch {
	case outcome.Cancelled:
		return &Result{Action: ActionNoOpinion}, nil
	case outcome.Verdict == interaction.VerdictReply:
		return &Result{
			Action:   ActionContinue,
			Response: hookresponse.Continue(outcome.ReplyText),
		}, nil
	default:
		// finish and abandoned both let the agent stop.
		return &Result{Action: ActionStop}, nil
	}
}

// handleNotification forwards the notification fire-and-forget.
func (g *Gate) handleNotification(ctx context.Context, hookCtx *hook.Context) *Result {
	text := hookCtx.NotificationMessage
	if text == "" {
		text = "Claude Code needs attention"
	}

	g.notify(ctx, "🔔 "+text)

	return &Result{Action: ActionNoOpinion}
}

// notify sends a plain outbound message, logging failures instead of
// surfacing them.
func (g *Gate) notify(ctx context.Context, text string) {
	_, err := g.api.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: g.cfg.GetTelegram().ChatID,
		Text:   text,
	})
	if err != nil {
		g.logger.Error("notification send failed", "error", err.Error())
	}
}

// track registers the session before a blocking interaction begins.
func (g *Gate) track(hookCtx *hook.Context) {
	if !hookCtx.HasSessionID() {
		return
	}

	if err := g.registry.Register(hookCtx.SessionID, hookCtx.WorkingDir); err != nil {
		g.logger.Error("session registration failed", "error", err.Error())
	}
}

// untrack removes the session once the invocation completes.
func (g *Gate) untrack(hookCtx *hook.Context) {
	if !hookCtx.HasSessionID() {
		return
	}

	if err := g.registry.Remove(hookCtx.SessionID); err != nil {
		g.logger.Error("session removal failed", "error", err.Error())
	}
}

// deps bundles collaborators for the interaction machines.
func (g *Gate) deps() interaction.Deps {
	return interaction.Deps{
		API:      g.api,
		Poller:   g.poll,
		Registry: g.registry,
		Config:   g.cfg,
		Logger:   g.logger,
		Now:      g.now,
	}
}

// respond wraps a permission decision in a Result.
func respond(decision, reason, additionalContext string) *Result {
	return &Result{
		Action:   ActionRespond,
		Response: hookresponse.Permission(decision, reason, additionalContext),
	}
}
