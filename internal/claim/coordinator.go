package claim

import (
	"time"

	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

// Coordinator serializes claim attempts across processes. While the lock
// is held it scans the append log for an unclaimed envelope matching the
// caller's predicate and durably records the claim before releasing.
type Coordinator struct {
	log    *msglog.Log
	lock   *fileLock
	logger logger.Logger
	now    func() time.Time
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.now = fn
			c.lock.now = fn
		}
	}
}

// WithSleepFunc sets a custom sleep function for testing.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.lock.sleep = fn
		}
	}
}

// NewCoordinator creates a Coordinator over the given append log, using
// lockPath as the cross-process mutual-exclusion token.
func NewCoordinator(log *msglog.Log, lockPath string, opts ...Option) *Coordinator {
	c := &Coordinator{
		log: log,
		lock: &fileLock{
			path:  lockPath,
			now:   time.Now,
			sleep: time.Sleep,
		},
		logger: logger.NewNoOpLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TryClaim attempts to claim the first unclaimed envelope matching pred
// for claimantID. Returns nil with no error both when nothing matches and
// when the lock stayed busy for the whole acquisition bound; either way
// the caller retries next tick.
func (c *Coordinator) TryClaim(pred msglog.Predicate, claimantID string) (*msglog.Envelope, error) {
	acquired, err := c.lock.tryAcquire()
	if err != nil {
		return nil, err
	}

	if !acquired {
		c.logger.Debug("claim lock busy", "claimant", claimantID)

		return nil, nil
	}
	defer c.lock.release()

	claimed, err := c.log.ClaimedIDs()
	if err != nil {
		return nil, err
	}

	matches, err := c.log.ReadAll(pred)
	if err != nil {
		return nil, err
	}

	// First fit in log order; no global FIFO promise across predicates.
	for i := range matches {
		env := &matches[i]

		if _, taken := claimed[env.SequenceID]; taken {
			continue
		}

		record := msglog.Claim{
			SequenceID: env.SequenceID,
			ClaimedBy:  claimantID,
			ClaimedAt:  c.now(),
		}

		if err := c.log.AppendClaim(record); err != nil {
			return nil, err
		}

		c.logger.Debug("claimed envelope",
			"sequence_id", env.SequenceID,
			"claimant", claimantID,
		)

		return env, nil
	}

	return nil, nil
}
