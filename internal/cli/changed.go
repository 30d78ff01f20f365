package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/gitstat"
)

var changedApprovalID string

func init() {
	rootCmd.AddCommand(changedCmd)
	changedCmd.Flags().StringVar(&changedApprovalID, "approval-id", "", "Approval id authorizing the listing (required)")
}

var changedCmd = &cobra.Command{
	Use:   "changed",
	Short: "List changed files in the working tree (gated)",
	Long: "Authorizes the approval id for action \"changed-files\" (consuming\n" +
		"it), then runs git status and prints the changed paths.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runChanged,
}

func runChanged(cmd *cobra.Command, args []string) error {
	if changedApprovalID == "" {
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

	if err := g.Authorize(ctx, "changed-files", changedApprovalID); err != nil {
		return err
	}

	files, err := gitstat.ChangedFiles(ctx, ".")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No changed files.")
		return nil
	}
	fmt.Println("Changed files:")
	for _, f := range files {
		fmt.Printf("- %s\n", f)
	}
	return nil
}
