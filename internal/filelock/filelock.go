// Package filelock applies and removes restrictive permissions on
// designated secret files, with a sentinel marker per file. It is
// defense in depth, independent of the approval mechanism: a file
// can be locked while zero approvals exist. Callers gate Unlock
// through the access gate; this package only turns the screws.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	// LockedMode is the permission set on locked files.
	LockedMode = os.FileMode(0400)
	// UnlockedMode is the permission restored on unlock.
	UnlockedMode = os.FileMode(0600)
	// SentinelSuffix is appended to a path to form its marker file.
	// Presence of the marker is what signals the locked state; the
	// content is informational only.
	SentinelSuffix = ".locked"
)

// ErrPermission wraps filesystem permission failures so callers can
// map them to a distinct exit code.
var ErrPermission = errors.New("permission denied")

// State of one file.
type State string

const (
	StateLocked   State = "LOCKED"
	StateUnlocked State = "UNLOCKED"
	StateMissing  State = "MISSING"
)

// PathResult is the per-path outcome of a batch operation. Batch
// operations never abort on the first problem; each path reports
// its own result.
type PathResult struct {
	Path    string
	State   State
	Skipped bool
	Err     error
}

// Result summarizes a batch lock/unlock.
type Result struct {
	Paths []PathResult
}

// Failed returns every per-path error in the batch.
func (r Result) Failed() []PathResult {
	var out []PathResult
	for _, p := range r.Paths {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Err joins all per-path errors, or nil when everything succeeded
// or was skipped.
func (r Result) Err() error {
	var errs []error
	for _, p := range r.Paths {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Path, p.Err))
		}
	}
	return errors.Join(errs...)
}

// Lock sets restrictive permissions and writes a sentinel for each
// path. Idempotent: locking an already-locked file is a no-op.
// Missing paths are skipped and reported, not fatal.
func Lock(paths []string) Result {
	var res Result
	for _, path := range paths {
		res.Paths = append(res.Paths, lockOne(path))
	}
	return res
}

func lockOne(path string) PathResult {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return PathResult{Path: path, State: StateMissing, Skipped: true}
		}
		return PathResult{Path: path, Err: wrapPerm(err)}
	}

	if IsLocked(path) {
		return PathResult{Path: path, State: StateLocked}
	}

	if err := os.Chmod(path, LockedMode); err != nil {
		return PathResult{Path: path, Err: wrapPerm(err)}
	}

	note := fmt.Sprintf("locked at %s; do not edit, remove via secretgate unlock\n",
		time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path+SentinelSuffix, []byte(note), 0600); err != nil {
		return PathResult{Path: path, Err: wrapPerm(err)}
	}

	return PathResult{Path: path, State: StateLocked}
}

// Unlock restores permissive mode and removes the sentinel for each
// path. Missing paths are skipped and reported.
func Unlock(paths []string) Result {
	var res Result
	for _, path := range paths {
		res.Paths = append(res.Paths, unlockOne(path))
	}
	return res
}

func unlockOne(path string) PathResult {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return PathResult{Path: path, State: StateMissing, Skipped: true}
		}
		return PathResult{Path: path, Err: wrapPerm(err)}
	}

	if err := os.Chmod(path, UnlockedMode); err != nil {
		return PathResult{Path: path, Err: wrapPerm(err)}
	}
	if err := os.Remove(path + SentinelSuffix); err != nil && !os.IsNotExist(err) {
		return PathResult{Path: path, Err: wrapPerm(err)}
	}

	return PathResult{Path: path, State: StateUnlocked}
}

// Status reports the state of each path without changing anything.
func Status(paths []string) []PathResult {
	var out []PathResult
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				out = append(out, PathResult{Path: path, State: StateMissing})
				continue
			}
			out = append(out, PathResult{Path: path, Err: wrapPerm(err)})
			continue
		}
		st := StateUnlocked
		if IsLocked(path) {
			st = StateLocked
		}
		out = append(out, PathResult{Path: path, State: st})
	}
	return out
}

// IsLocked reports whether the sentinel marker for path is present.
func IsLocked(path string) bool {
	_, err := os.Stat(path + SentinelSuffix)
	return err == nil
}

func wrapPerm(err error) error {
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return err
}
