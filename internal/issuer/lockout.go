package issuer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Lockout policy defaults. Counted failures reset when the window
// expires or a verification succeeds.
const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
	DefaultBackoff     = 15 * time.Minute
)

// lockoutState is the persisted failure tracker.
type lockoutState struct {
	Failures    int       `json:"failures"`
	WindowStart time.Time `json:"window_start"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// lockoutTracker persists consecutive invalid-PIN counts across CLI
// invocations so brute forcing cannot simply re-run the binary.
type lockoutTracker struct {
	path        string
	maxFailures int
	window      time.Duration
	backoff     time.Duration
}

func newLockoutTracker(path string, maxFailures int, window, backoff time.Duration) *lockoutTracker {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &lockoutTracker{path: path, maxFailures: maxFailures, window: window, backoff: backoff}
}

// lockedUntil returns the lockout deadline if one is in effect.
func (t *lockoutTracker) lockedUntil(now time.Time) (time.Time, bool) {
	st := t.read()
	if now.Before(st.LockedUntil) {
		return st.LockedUntil, true
	}
	return time.Time{}, false
}

// recordFailure counts one invalid PIN. When the count inside the
// window reaches the maximum, a lockout deadline is set.
func (t *lockoutTracker) recordFailure(now time.Time) error {
	st := t.read()
	if now.Sub(st.WindowStart) >= t.window {
		st.Failures = 0
		st.WindowStart = now
	}
	st.Failures++
	if st.Failures >= t.maxFailures {
		st.LockedUntil = now.Add(t.backoff)
		st.Failures = 0
		st.WindowStart = now
	}
	return t.write(st)
}

// recordSuccess resets the tracker.
func (t *lockoutTracker) recordSuccess() error {
	return t.write(lockoutState{})
}

func (t *lockoutTracker) read() lockoutState {
	var st lockoutState
	data, err := os.ReadFile(t.path)
	if err != nil {
		return st
	}
	// A mangled tracker fails open to empty state: the tracker is a
	// hardening layer, the PIN hash is still the gate.
	_ = json.Unmarshal(data, &st)
	return st
}

func (t *lockoutTracker) write(st lockoutState) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("create lockout directory: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write lockout state: %w", err)
	}
	return os.Rename(tmp, t.path)
}
