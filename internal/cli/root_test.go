package cli

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/quantops/secretgate/internal/filelock"
	"github.com/quantops/secretgate/internal/gate"
	"github.com/quantops/secretgate/internal/issuer"
	"github.com/quantops/secretgate/internal/ledger"
	"github.com/quantops/secretgate/internal/pinstore"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: --reason is required", errUsage), ExitUsage},
		{pinstore.ErrNotInitialized, ExitNotInitialized},
		{fmt.Errorf("issue: %w", issuer.ErrInvalidPin), ExitInvalidPin},
		{issuer.ErrLockedOut, ExitLockedOut},
		{fmt.Errorf("authorize: %w", ledger.ErrNotFound), ExitNotFound},
		{ledger.ErrAlreadyConsumed, ExitAlreadyConsumed},
		{gate.ErrExpired, ExitExpired},
		{ledger.ErrCorrupt, ExitCorrupt},
		{pinstore.ErrCorrupt, ExitCorrupt},
		{filelock.ErrPermission, ExitPermissionDenied},
		{errors.New("anything else"), 1},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.err); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestUsageErrorsMapToUsageExitCode(t *testing.T) {
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	for _, args := range [][]string{
		{"no-such-command"},
		{"list", "--no-such-flag"},
		{"list", "unexpected-arg"},
	} {
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		if err == nil {
			t.Fatalf("args %v: expected an error", args)
		}
		if got := exitCodeFor(err); got != ExitUsage {
			t.Errorf("args %v: exit code %d, want %d (err: %v)", args, got, ExitUsage, err)
		}
	}
}
