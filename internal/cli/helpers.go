package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/quantops/secretgate/internal/audit"
	"github.com/quantops/secretgate/internal/config"
	"github.com/quantops/secretgate/internal/gate"
	"github.com/quantops/secretgate/internal/issuer"
	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(stateDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	return ledger.Open(cfg.LedgerPath())
}

func newIssuer(cfg *config.Config, l *ledger.Ledger) *issuer.Issuer {
	return issuer.New(issuer.Config{
		Pins:        pinstore.NewStore(cfg.PinPath()),
		Ledger:      l,
		LockoutPath: cfg.LockoutPath(),
		MaxFailures: cfg.Lockout.MaxFailures,
		Window:      cfg.Lockout.Window.Std(),
		Backoff:     cfg.Lockout.Backoff.Std(),
	})
}

// openGate opens the decision audit store and builds the access
// gate. The returned closer must run before process exit so the
// store flushes cleanly.
func openGate(ctx context.Context, cfg *config.Config) (*gate.Gate, func(), error) {
	store, err := audit.Open(ctx, cfg.AuditPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open audit store: %w", err)
	}
	l, err := openLedger(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return gate.New(l, store), func() { _ = store.Close() }, nil
}

// promptPIN reads a PIN without echo from the controlling terminal.
// The PIN is never read from the environment.
func promptPIN(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; pass --pin for non-interactive use")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read PIN: %w", err)
	}
	return string(b), nil
}

// resolvePaths returns args if given, else the configured secret
// files.
func resolvePaths(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return cfg.SecretFiles
}
