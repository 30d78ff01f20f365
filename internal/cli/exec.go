package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/config"
)

var (
	execApprovalID string
	execDryRun     bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execApprovalID, "approval-id", "", "Approval id authorizing the command (required)")
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Authorize and print the command without executing")
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Run a sensitive command behind the approval gate",
	Long: "Authorizes the approval id for action \"exec\" (consuming it), then\n" +
		"runs the command. Real execution additionally requires " + config.LiveEnv + "=1;\n" +
		"without it the command is only printed. Exit code 77 means the\n" +
		"environment gate refused.",
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	if execApprovalID == "" {
		return fmt.Errorf("%w: --approval-id is required", errUsage)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	g, closeGate, err := openGate(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGate()

	if err := g.Authorize(ctx, "exec", execApprovalID); err != nil {
		return err
	}

	if execDryRun || !config.Live() {
		fmt.Printf("DRY RUN: would execute: %s\n", strings.Join(args, " "))
		if !execDryRun {
			fmt.Fprintf(os.Stderr, "set %s=1 to execute for real\n", config.LiveEnv)
			closeGate()
			os.Exit(ExitBlocked)
		}
		return nil
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			closeGate()
			os.Exit(ee.ExitCode())
		}
		return fmt.Errorf("execute %s: %w", args[0], err)
	}
	return nil
}
