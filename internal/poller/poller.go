// Package poller implements the long-running per-process wait loop:
// fetch new updates from the remote source, deduplicate them against the
// append log, attempt to claim one matching the caller's predicate, and
// emit heartbeats, adapting the polling cadence to traffic.
//
// There is no central dispatcher process. Every concurrent hook invocation
// runs its own poller over the shared inbox; the claim coordinator makes
// claiming safe under true multi-process race, and the predicate lets each
// process subscribe to only the updates relevant to its own interaction.
package poller

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/claim"
	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/registry"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// ErrPollTimeout is returned when no matching message was claimed before
// the request's timeout elapsed. Distinct from cancellation, which returns
// a nil envelope with no error.
var ErrPollTimeout = errors.New("poll timed out waiting for a matching message")

// Deps bundles the poller's collaborators.
type Deps struct {
	API      telegram.API
	Log      *msglog.Log
	Claims   *claim.Coordinator
	Registry *registry.Registry
	Modes    *mode.Resolver
}

// Request describes one blocking wait.
type Request struct {
	// Predicate selects the envelopes this wait may claim.
	Predicate msglog.Predicate

	// ClaimantID is the interaction id recorded on the claim.
	ClaimantID string

	// SessionID receives a heartbeat every tick.
	SessionID string

	// Timeout bounds the wait. Zero or negative waits indefinitely.
	Timeout time.Duration

	// CancelModes lists operating modes that invalidate this wait. When
	// the externally-readable mode flips to one of them mid-wait, Poll
	// returns a nil envelope with no error.
	CancelModes []mode.Mode
}

// Poller runs the wait loop.
type Poller struct {
	deps   Deps
	cfg    *config.Config
	logger logger.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// Option configures the Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Poller) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(p *Poller) {
		if fn != nil {
			p.now = fn
		}
	}
}

// WithSleepFunc sets a custom sleep function for testing.
func WithSleepFunc(fn func(context.Context, time.Duration) error) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// New creates a Poller.
func New(deps Deps, cfg *config.Config, opts ...Option) *Poller {
	p := &Poller{
		deps:   deps,
		cfg:    cfg,
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Poll blocks until an envelope matching the request's predicate is
// claimed, the timeout elapses (ErrPollTimeout), the operating mode flips
// to one of CancelModes (nil, nil), or ctx is cancelled.
func (p *Poller) Poll(ctx context.Context, req Request) (*msglog.Envelope, error) {
	pollCfg := p.cfg.GetPoll()
	sessionCfg := p.cfg.GetSession()
	fetchTimeout := p.cfg.GetTelegram().GetFetchTimeout()

	start := p.now()

	var deadline time.Time
	if req.Timeout > 0 {
		deadline = start.Add(req.Timeout)
	}

	cursor, err := p.deps.Log.HighWaterMark()
	if err != nil {
		return nil, err
	}

	delay := pollCfg.GetMinDelay()
	lastSweep := start

	var lastHeartbeat time.Time

	log := p.logger.With(
		"claimant", req.ClaimantID,
		"session_id", req.SessionID,
	)
	log.Debug("poll started", "timeout", req.Timeout, "cursor", cursor)

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "poll context cancelled")
		}

		// 1. Mode flips are the only cross-process cancellation channel,
		// so read the mode fresh every tick.
		current := p.deps.Modes.Current(req.SessionID)
		for _, cancel := range req.CancelModes {
			if current == cancel {
				log.Info("poll cancelled by mode change", "mode", current)

				return nil, nil
			}
		}

		// 2-4. Fetch since the high-water mark, dedup, append.
		fetched, fetchErr := p.fetchTick(ctx, &cursor, fetchTimeout)

		// 5. Claim attempt; success is the lowest-latency exit.
		env, err := p.deps.Claims.TryClaim(req.Predicate, req.ClaimantID)
		if err != nil {
			return nil, err
		}

		if env != nil {
			log.Info("claimed message",
				"sequence_id", env.SequenceID,
				"elapsed", p.now().Sub(start),
			)

			return env, nil
		}

		// 6. Adapt the next delay to traffic.
		switch {
		case fetchErr != nil:
			// Transient remote failure: back off, never abort the wait.
			log.Error("remote fetch failed, backing off", "error", fetchErr.Error())

			delay = pollCfg.GetErrorBackoff()
		case fetched > 0:
			delay = pollCfg.GetMinDelay()
		default:
			delay = min(delay*2, pollCfg.GetMaxDelay())
		}

		// 7. Coarse-cadence housekeeping from inside the loop; no
		// separate scheduler process exists to do it.
		if p.now().Sub(lastSweep) >= sessionCfg.GetSweepInterval() {
			p.sweep(sessionCfg, pollCfg)

			lastSweep = p.now()
		}

		// 8. Liveness heartbeat, throttled to the configured interval so a
		// hot loop does not rewrite the registry every tick.
		if req.SessionID != "" && p.now().Sub(lastHeartbeat) >= sessionCfg.GetHeartbeatInterval() {
			if err := p.deps.Registry.Heartbeat(req.SessionID); err != nil {
				log.Error("heartbeat failed", "error", err.Error())
			}

			lastHeartbeat = p.now()
		}

		// 9. Sleep, bounded by the deadline.
		if !deadline.IsZero() {
			remaining := deadline.Sub(p.now())
			if remaining <= 0 {
				log.Info("poll timed out", "elapsed", p.now().Sub(start))

				return nil, errors.Wrapf(ErrPollTimeout, "after %s", req.Timeout)
			}

			delay = min(delay, remaining)
		}

		if err := p.sleep(ctx, delay); err != nil {
			return nil, errors.Wrap(err, "poll context cancelled")
		}
	}
}

// fetchTick fetches updates past the cursor, deduplicates them against the
// log and claim set, and appends the genuinely new ones. Returns how many
// new envelopes were appended. The cursor advances over everything
// fetched, duplicates included.
func (p *Poller) fetchTick(
	ctx context.Context,
	cursor *int64,
	fetchTimeout time.Duration,
) (int, error) {
	updates, err := p.deps.API.GetUpdates(ctx, *cursor+1, fetchTimeout)
	if err != nil {
		return 0, err
	}

	if len(updates) == 0 {
		return 0, nil
	}

	known, err := p.deps.Log.KnownIDs()
	if err != nil {
		return 0, err
	}

	claimed, err := p.deps.Log.ClaimedIDs()
	if err != nil {
		return 0, err
	}

	var fresh []msglog.Envelope

	now := p.now()

	for _, update := range updates {
		if update.UpdateID > *cursor {
			*cursor = update.UpdateID
		}

		if _, seen := known[update.UpdateID]; seen {
			continue
		}

		if _, taken := claimed[update.UpdateID]; taken {
			continue
		}

		fresh = append(fresh, msglog.Envelope{
			SequenceID: update.UpdateID,
			Update:     update,
			ReceivedAt: now,
		})
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	if err := p.deps.Log.Append(fresh); err != nil {
		return 0, err
	}

	return len(fresh), nil
}

// sweep releases resources of abandoned sessions and trims aged state.
// Any process's sweep may clean up another session's stale entry.
func (p *Poller) sweep(sessionCfg *config.SessionConfig, pollCfg *config.PollConfig) {
	abandoned, err := p.deps.Registry.ListAbandoned(sessionCfg.GetLivenessThreshold())
	if err != nil {
		p.logger.Error("abandonment scan failed", "error", err.Error())

		return
	}

	for _, session := range abandoned {
		p.logger.Info("releasing abandoned session", "session_id", session.SessionID)

		if err := p.deps.Registry.Remove(session.SessionID); err != nil {
			p.logger.Error("removing abandoned session failed",
				"session_id", session.SessionID,
				"error", err.Error(),
			)
		}

		_ = p.deps.Modes.ClearSession(session.SessionID)

		_ = p.deps.Registry.ReleaseReplyLock(session.SessionID)
	}

	if err := p.deps.Log.Trim(pollCfg.GetMaxLogRecords()); err != nil {
		p.logger.Error("message log trim failed", "error", err.Error())
	}

	if _, err := p.deps.Registry.SweepRoutes(sessionCfg.GetMessageMapMaxAge()); err != nil {
		p.logger.Error("message map sweep failed", "error", err.Error())
	}
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
