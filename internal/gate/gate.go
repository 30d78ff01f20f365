// Package gate is the single choke point for sensitive actions.
// Every gated operation presents an approval id here; the gate
// consults the ledger, enforces at-most-once consumption, and
// records the decision — authorized or not — in the audit store.
package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/quantops/secretgate/internal/audit"
	"github.com/quantops/secretgate/internal/ledger"
)

// ErrExpired is returned when the approval's deadline has passed.
var ErrExpired = errors.New("approval expired")

// Outcome labels recorded in the decision audit store.
const (
	OutcomeAuthorized      = "authorized"
	OutcomeNotFound        = "not_found"
	OutcomeAlreadyConsumed = "already_consumed"
	OutcomeExpired         = "expired"
	OutcomeError           = "error"
)

// Gate authorizes actions against the approval ledger.
type Gate struct {
	ledger *ledger.Ledger
	audit  *audit.Store
}

// New creates a Gate. The audit store may be nil in tests; decisions
// are then only reported on stderr.
func New(l *ledger.Ledger, a *audit.Store) *Gate {
	return &Gate{ledger: l, audit: a}
}

// Authorize permits action if approvalID names an unconsumed,
// unexpired approval, consuming it as a side effect. One approval
// authorizes exactly one action. A nil return means authorized; any
// error carries the specific refusal kind.
func (g *Gate) Authorize(ctx context.Context, action, approvalID string) error {
	err := g.authorize(action, approvalID)
	g.record(ctx, action, approvalID, err)
	return err
}

func (g *Gate) authorize(action, approvalID string) error {
	a, err := g.ledger.FindByID(approvalID)
	if err != nil {
		return err
	}
	if a.Consumed {
		return fmt.Errorf("%w: %s (spent on %q)", ledger.ErrAlreadyConsumed, approvalID, a.ConsumedAction)
	}
	if a.Expired(time.Now().UTC()) {
		return fmt.Errorf("%w: %s", ErrExpired, approvalID)
	}
	return g.ledger.MarkConsumed(approvalID, action)
}

// record writes the decision row. Audit failures do not change the
// authorization result but are never silent.
func (g *Gate) record(ctx context.Context, action, approvalID string, authErr error) {
	d := audit.Decision{
		Timestamp:  time.Now().UTC(),
		Action:     action,
		ApprovalID: approvalID,
		Outcome:    outcomeFor(authErr),
	}
	if authErr != nil {
		d.Detail = authErr.Error()
	}

	if g.audit == nil {
		fmt.Fprintf(os.Stderr, "gate: %s %s -> %s\n", d.Action, d.ApprovalID, d.Outcome)
		return
	}
	if err := g.audit.Record(ctx, d); err != nil {
		fmt.Fprintf(os.Stderr, "gate: cannot record decision: %v\n", err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeAuthorized
	case errors.Is(err, ledger.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ledger.ErrAlreadyConsumed):
		return OutcomeAlreadyConsumed
	case errors.Is(err, ErrExpired):
		return OutcomeExpired
	default:
		return OutcomeError
	}
}
