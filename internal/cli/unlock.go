package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/filelock"
)

var unlockApprovalID string

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.Flags().StringVar(&unlockApprovalID, "approval-id", "", "Approval id authorizing the unlock (required)")
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [paths...]",
	Short: "Unlock secret files (requires an approval id)",
	Long: "Authorizes the approval id for action \"unlock\", consuming it, then\n" +
		"restores mode 0600 and removes the sentinel for each path. A refused\n" +
		"approval leaves every file locked.",
	RunE: runUnlock,
}

func runUnlock(cmd *cobra.Command, args []string) error {
	if unlockApprovalID == "" {
		return fmt.Errorf("%w: --approval-id is required", errUsage)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	g, closeGate, err := openGate(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGate()

	if err := g.Authorize(ctx, "unlock", unlockApprovalID); err != nil {
		return err
	}

	res := filelock.Unlock(resolvePaths(cfg, args))
	printBatch(res)
	return res.Err()
}
