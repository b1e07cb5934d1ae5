// Package claim provides the cross-process claim coordinator. It guarantees
// at-most-one claimant ever receives a given sequence id, even with
// multiple hook processes racing.
package claim

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	lockFilePermissions = 0o600

	// maxAcquireAttempts bounds the lock acquisition spin. With the
	// backoff below the total wait stays in the tens of milliseconds;
	// a caller that loses simply tries again next poll tick.
	maxAcquireAttempts = 4

	// acquireBackoffStep grows the sleep between attempts.
	acquireBackoffStep = 5 * time.Millisecond

	// staleLockAge is how old a lock file may be before it is presumed
	// left behind by a crashed process and broken.
	staleLockAge = 5 * time.Second
)

// lockInfo is the content of the lock file, for stale detection and
// debugging.
type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// fileLock is a named cross-process mutual-exclusion token backed by
// exclusive file creation.
type fileLock struct {
	path  string
	now   func() time.Time
	sleep func(time.Duration)
}

// tryAcquire attempts to take the lock with bounded backoff. Returns false
// when the lock stayed busy for the whole bound.
func (f *fileLock) tryAcquire() (bool, error) {
	for attempt := range maxAcquireAttempts {
		acquired, err := f.create()
		if err != nil {
			return false, err
		}

		if acquired {
			return true, nil
		}

		f.breakIfStale()

		// Linear backoff: 5ms, 10ms, 15ms between attempts.
		f.sleep(time.Duration(attempt+1) * acquireBackoffStep)
	}

	return false, nil
}

// create attempts a single exclusive creation of the lock file.
func (f *fileLock) create() (bool, error) {
	//nolint:gosec // G304: path comes from the state directory resolver
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}

		return false, errors.Wrap(err, "creating claim lock")
	}

	info := lockInfo{
		PID:        os.Getpid(),
		AcquiredAt: f.now(),
	}

	data, err := json.Marshal(info)
	if err == nil {
		_, _ = file.Write(data)
	}

	_ = file.Close()

	return true, nil
}

// breakIfStale removes a lock file left behind by a crashed holder. The
// lock is only ever held for a claim scan, so anything older than
// staleLockAge is abandoned.
func (f *fileLock) breakIfStale() {
	stat, err := os.Stat(f.path)
	if err != nil {
		return
	}

	if f.now().Sub(stat.ModTime()) > staleLockAge {
		_ = os.Remove(f.path)
	}
}

// release removes the lock file.
func (f *fileLock) release() {
	_ = os.Remove(f.path)
}
