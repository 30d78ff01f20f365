package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantops/secretgate/internal/audit"
	"github.com/quantops/secretgate/internal/issuer"
	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

type fixture struct {
	gate   *Gate
	ledger *ledger.Ledger
	issuer *issuer.Issuer
	audit  *audit.Store
}

func newFixture(t *testing.T) *fixture {
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

	store, err := audit.Open(context.Background(), filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("failed to open audit store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	iss := issuer.New(issuer.Config{
		Pins:        pins,
		Ledger:      l,
		LockoutPath: filepath.Join(dir, "lockout.json"),
	})

	return &fixture{gate: New(l, store), ledger: l, issuer: iss, audit: store}
}

func TestAuthorizeAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.issuer.Issue("1234", "test", 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := f.gate.Authorize(ctx, "unlock", id); err != nil {
		t.Fatalf("first Authorize failed: %v", err)
	}

	err = f.gate.Authorize(ctx, "unlock", id)
	if !errors.Is(err, ledger.ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed on second use, got %v", err)
	}
}

func TestAuthorizeUnknownID(t *testing.T) {
	f := newFixture(t)
	err := f.gate.Authorize(context.Background(), "unlock", "ap-doesnotexist")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthorizeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.issuer.Issue("1234", "short-lived", time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	err = f.gate.Authorize(ctx, "unlock", id)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// An expired approval stays unconsumed; the refusal must not
	// spend it.
	a, err := f.ledger.FindByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if a.Consumed {
		t.Error("expired approval was consumed by a refused authorize")
	}
}

func TestEveryCallIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.issuer.Issue("1234", "test", 0)
	if err != nil {
		t.Fatal(err)
	}

	_ = f.gate.Authorize(ctx, "unlock", id)              // authorized
	_ = f.gate.Authorize(ctx, "unlock", id)              // already_consumed
	_ = f.gate.Authorize(ctx, "snapshot", "ap-missing")  // not_found

	decisions, err := f.audit.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(decisions))
	}

	// Newest first.
	wantOutcomes := []string{OutcomeNotFound, OutcomeAlreadyConsumed, OutcomeAuthorized}
	for i, want := range wantOutcomes {
		if decisions[i].Outcome != want {
			t.Errorf("row %d: expected outcome %s, got %s", i, want, decisions[i].Outcome)
		}
	}
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// issue → authorize → re-authorize is the canonical flow.
	id, err := f.issuer.Issue("1234", "test", 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := f.gate.Authorize(ctx, "unlock", id); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	a, err := f.ledger.FindByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Consumed || a.ConsumedAction != "unlock" {
		t.Errorf("expected consumed on unlock, got consumed=%v action=%q", a.Consumed, a.ConsumedAction)
	}

	if err := f.gate.Authorize(ctx, "unlock", id); !errors.Is(err, ledger.ErrAlreadyConsumed) {
		t.Fatalf("expected AlreadyConsumed, got %v", err)
	}

	// Invalid PIN issues nothing.
	if _, err := f.issuer.Issue("wrong-pin", "test", 0); !errors.Is(err, issuer.ErrInvalidPin) {
		t.Fatalf("expected ErrInvalidPin, got %v", err)
	}
	approvals, err := f.ledger.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(approvals) != 1 {
		t.Errorf("ledger length changed on invalid PIN: %d", len(approvals))
	}
}
