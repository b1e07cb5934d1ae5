package registry

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/internal/telegram"
)

// ReplyLock is the singleton routing lock binding free-text replies to one
// session. At most one instance exists system-wide. It lives for exactly
// one "waiting for free-text reply" phase; it is never expired by time.
type ReplyLock struct {
	// OwningSessionID is the session the free text belongs to.
	OwningSessionID string `json:"owning_session_id"`

	// BoundMessageID is the outbound message the reply answers.
	BoundMessageID int64 `json:"bound_message_id"`

	// AcquiredAt is when the waiting phase began.
	AcquiredAt time.Time `json:"acquired_at"`
}

// AcquireReplyLock begins a free-text waiting phase for the session,
// binding it to the given outbound message. An existing lock is
// overwritten: the newest waiting phase wins.
func (r *Registry) AcquireReplyLock(sessionID string, messageID int64) error {
	lock := ReplyLock{
		OwningSessionID: sessionID,
		BoundMessageID:  messageID,
		AcquiredAt:      r.now(),
	}

	data, err := json.Marshal(lock)
	if err != nil {
		return errors.Wrap(err, "marshaling reply lock")
	}

	r.logger.Debug("reply lock acquired",
		"session_id", sessionID,
		"message_id", messageID,
	)

	return atomicWrite(r.resolver.ReplyLockFile(), data)
}

// ReleaseReplyLock ends the waiting phase for sessionID. The lock is only
// removed when sessionID still owns it; a later waiter that overwrote the
// lock keeps it. Releasing an unheld lock is a no-op.
func (r *Registry) ReleaseReplyLock(sessionID string) error {
	lock, err := r.CurrentReplyLock()
	if err != nil {
		return err
	}

	if lock == nil || lock.OwningSessionID != sessionID {
		return nil
	}

	err = os.Remove(r.resolver.ReplyLockFile())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing reply lock")
	}

	return nil
}

// CurrentReplyLock returns the held lock, or nil when unheld. Corrupt lock
// files read as unheld.
func (r *Registry) CurrentReplyLock() (*ReplyLock, error) {
	//nolint:gosec // G304: path comes from the state directory resolver
	data, err := os.ReadFile(r.resolver.ReplyLockFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "reading reply lock")
	}

	var lock ReplyLock
	if err := json.Unmarshal(data, &lock); err != nil {
		r.logger.Debug("reply lock corrupt, treating as unheld", "error", err.Error())

		return nil, nil
	}

	return &lock, nil
}

// OwnedBy reports whether the incoming update may be routed to sessionID.
// A structured reply is routed by the message map first: the operator named
// the exact prompt they are answering, which overrides the reply lock.
// Otherwise the lock decides:
//
//	(a) the caller's session holds the lock, or
//	(b) the update is structurally a reply to the exact message the lock
//	    is bound to.
//
// While the lock is unheld, loose text follows the chat's most recent
// prompt; chats with no recorded prompt stay permissive.
func (r *Registry) OwnedBy(sessionID string, update *telegram.Update) (bool, error) {
	if update != nil {
		if repliedTo := update.RepliedToID(); repliedTo != 0 {
			routed, err := r.LookupRoute(repliedTo)
			if err != nil {
				return false, err
			}

			if routed != "" {
				return routed == sessionID, nil
			}
		}
	}

	lock, err := r.CurrentReplyLock()
	if err != nil {
		return false, err
	}

	if lock == nil {
		if update != nil {
			if chatID := update.ChatID(); chatID != 0 {
				latest, err := r.LatestSession(chatID)
				if err != nil {
					return false, err
				}

				if latest != "" && latest != sessionID {
					return false, nil
				}
			}
		}

		return true, nil
	}

	if lock.OwningSessionID == sessionID {
		return true, nil
	}

	return update != nil && update.IsReplyTo(lock.BoundMessageID), nil
}
