package issuer

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

func newTestIssuer(t *testing.T) (*Issuer, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()

	pins := pinstore.NewStore(filepath.Join(dir, "pin.json"))
	if err := pins.Set("1234"); err != nil {
		t.Fatalf("failed to set PIN: %v", err)
	}

	l, err := ledger.Open(filepath.Join(dir, "approvals.jsonl"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}

	return New(Config{
		Pins:        pins,
		Ledger:      l,
		LockoutPath: filepath.Join(dir, "lockout.json"),
	}), l
}

func TestIssueWithValidPin(t *testing.T) {
	iss, l := newTestIssuer(t)

	id, err := iss.Issue("1234", "test", 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	a, err := l.FindByID(id)
	if err != nil {
		t.Fatalf("issued id not in ledger: %v", err)
	}
	if a.Reason != "test" {
		t.Errorf("expected reason=test, got %q", a.Reason)
	}
	if a.Consumed {
		t.Error("fresh approval must not be consumed")
	}
}

func TestIssueTwiceDistinctIDs(t *testing.T) {
	iss, _ := newTestIssuer(t)

	a, err := iss.Issue("1234", "same reason", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := iss.Issue("1234", "same reason", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("two issues produced the same id %s", a)
	}
}

func TestIssueInvalidPin(t *testing.T) {
	iss, l := newTestIssuer(t)

	_, err := iss.Issue("wrong-pin", "test", 0)
	if !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("expected ErrInvalidPin, got %v", err)
	}

	// No partial record may be written.
	approvals, err := l.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(approvals) != 0 {
		t.Errorf("ledger grew on a failed issue: %d records", len(approvals))
	}
}

func TestIssueWithTTL(t *testing.T) {
	iss, l := newTestIssuer(t)

	id, err := iss.Issue("1234", "short-lived", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	a, err := l.FindByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if a.ExpiresAt == nil {
		t.Fatal("expected expires_at to be set")
	}
	if until := time.Until(*a.ExpiresAt); until < 4*time.Minute || until > 6*time.Minute {
		t.Errorf("expected expiry ~5 minutes out, got %s", until)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	iss, _ := newTestIssuer(t)

	for i := 0; i < DefaultMaxFailures; i++ {
		if _, err := iss.Issue("wrong", "test", 0); !errors.Is(err, ErrInvalidPin) {
			t.Fatalf("attempt %d: expected ErrInvalidPin, got %v", i, err)
		}
	}

	// Even the correct PIN is refused while locked out.
	_, err := iss.Issue("1234", "test", 0)
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}
}

func TestLockoutResetsOnSuccess(t *testing.T) {
	iss, _ := newTestIssuer(t)

	for i := 0; i < DefaultMaxFailures-1; i++ {
		if _, err := iss.Issue("wrong", "test", 0); !errors.Is(err, ErrInvalidPin) {
			t.Fatal(err)
		}
	}
	if _, err := iss.Issue("1234", "test", 0); err != nil {
		t.Fatalf("expected success before threshold, got %v", err)
	}

	// Counter reset: the next failure does not lock out immediately.
	if _, err := iss.Issue("wrong", "test", 0); !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("expected ErrInvalidPin after reset, got %v", err)
	}
}

func TestLockoutPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	pins := pinstore.NewStore(filepath.Join(dir, "pin.json"))
	if err := pins.Set("1234"); err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(filepath.Join(dir, "approvals.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{Pins: pins, Ledger: l, LockoutPath: filepath.Join(dir, "lockout.json")}

	iss := New(cfg)
	for i := 0; i < DefaultMaxFailures; i++ {
		_, _ = iss.Issue("wrong", "test", 0)
	}

	// A fresh instance (new process) sees the same lockout.
	fresh := New(cfg)
	if _, err := fresh.Issue("1234", "test", 0); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected lockout to survive re-instantiation, got %v", err)
	}
}
