package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/audit"
	"github.com/quantops/secretgate/internal/watcher"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch locked secret files for out-of-band modification",
	Long: "Monitors the directories holding the configured secret files.\n" +
		"Writes, chmods, renames, or removals touching a locked file are\n" +
		"recorded as tamper events in the audit store. Runs until\n" +
		"interrupted.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	store, err := audit.Open(ctx, cfg.AuditPath())
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(os.Stderr, "watching %d secret file(s); Ctrl-C to stop\n", len(cfg.SecretFiles))
	if err := watcher.New(cfg.SecretFiles, store).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
