package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/config"
	"github.com/quantops/secretgate/internal/filelock"
	"github.com/quantops/secretgate/internal/gate"
	"github.com/quantops/secretgate/internal/issuer"
	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

// Exit codes. Stable and distinct so scripts can react to specific
// failure kinds.
const (
	ExitOK               = 0
	ExitUsage            = 64
	ExitNotInitialized   = 65
	ExitInvalidPin       = 66
	ExitNotFound         = 67
	ExitAlreadyConsumed  = 68
	ExitExpired          = 69
	ExitCorrupt          = 70
	ExitPermissionDenied = 71
	ExitLockedOut        = 72
	ExitBlocked          = 77 // environment gate refused real execution
)

// errUsage marks command-line mistakes: bad flags, bad arguments,
// unknown subcommands, missing required flags.
var errUsage = errors.New("usage")

// usageArgs wraps a cobra argument validator so its failures exit
// with ExitUsage.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

var stateDir string

var rootCmd = &cobra.Command{
	Use:   "secretgate",
	Short: "PIN-gated approvals for sensitive operations on secret files",
	Long: "secretgate manages a PIN-protected approval workflow: sensitive actions\n" +
		"(unlocking secret files, archiving them, listing changed files, running\n" +
		"commands) require a single-use approval id, minted after PIN verification\n" +
		"and recorded in a tamper-evident ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", config.DefaultStateDir(),
		"Directory holding the PIN record, ledger, and audit store")
	// Unknown subcommands and flag parse failures are usage errors.
	rootCmd.Args = usageArgs(cobra.NoArgs)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
}

// Execute runs the root command, mapping error kinds to distinct
// exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return ExitUsage
	case errors.Is(err, pinstore.ErrNotInitialized):
		return ExitNotInitialized
	case errors.Is(err, issuer.ErrInvalidPin):
		return ExitInvalidPin
	case errors.Is(err, issuer.ErrLockedOut):
		return ExitLockedOut
	case errors.Is(err, ledger.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ledger.ErrAlreadyConsumed):
		return ExitAlreadyConsumed
	case errors.Is(err, gate.ErrExpired):
		return ExitExpired
	case errors.Is(err, ledger.ErrCorrupt), errors.Is(err, pinstore.ErrCorrupt):
		return ExitCorrupt
	case errors.Is(err, filelock.ErrPermission):
		return ExitPermissionDenied
	default:
		return 1
	}
}
