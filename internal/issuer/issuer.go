// Package issuer mints approval ids. It is the only writer of new
// approval entries: an id exists in the ledger only after the PIN
// verified, and nothing is written on a failed attempt.
package issuer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

var (
	// ErrInvalidPin is returned when the candidate PIN does not
	// verify. Never retried silently.
	ErrInvalidPin = errors.New("invalid PIN")
	// ErrLockedOut is returned while the invalid-PIN backoff is in
	// effect.
	ErrLockedOut = errors.New("too many invalid PIN attempts")
)

// Issuer couples the PIN store with the approval ledger.
type Issuer struct {
	pins    *pinstore.Store
	ledger  *ledger.Ledger
	lockout *lockoutTracker
}

// Config holds issuer construction parameters.
type Config struct {
	Pins        *pinstore.Store
	Ledger      *ledger.Ledger
	LockoutPath string
	MaxFailures int
	Window      time.Duration
	Backoff     time.Duration
}

// New creates an Issuer.
func New(cfg Config) *Issuer {
	return &Issuer{
		pins:    cfg.Pins,
		ledger:  cfg.Ledger,
		lockout: newLockoutTracker(cfg.LockoutPath, cfg.MaxFailures, cfg.Window, cfg.Backoff),
	}
}

// Issue verifies pin, mints a fresh unique id, and appends an
// approval entry with the given reason. ttl == 0 means the approval
// never expires on its own (it is still single-use).
func (i *Issuer) Issue(pin, reason string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	if until, locked := i.lockout.lockedUntil(now); locked {
		return "", fmt.Errorf("%w: retry after %s", ErrLockedOut, until.Format(time.RFC3339))
	}

	ok, err := i.pins.Verify(pin)
	if err != nil {
		return "", err
	}
	if !ok {
		if err := i.lockout.recordFailure(now); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot persist lockout state: %v\n", err)
		}
		return "", ErrInvalidPin
	}
	if err := i.lockout.recordSuccess(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot persist lockout state: %v\n", err)
	}

	id, err := i.freshID()
	if err != nil {
		return "", err
	}

	issuedBy := os.Getenv("USER")
	if issuedBy == "" {
		issuedBy = "unknown"
	}

	var expiresAt *time.Time
	if ttl > 0 {
		exp := now.Add(ttl)
		expiresAt = &exp
	}

	if err := i.ledger.Append(id, reason, issuedBy, expiresAt); err != nil {
		return "", err
	}
	return id, nil
}

// freshID generates a random id, collision-checked against the
// ledger. Collisions on 8 random bytes are not expected; the check
// keeps the uniqueness invariant explicit.
func (i *Issuer) freshID() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate approval id: %w", err)
		}
		id := "ap-" + hex.EncodeToString(b)

		present, err := i.ledger.Contains(id)
		if err != nil {
			return "", err
		}
		if !present {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique approval id")
}
