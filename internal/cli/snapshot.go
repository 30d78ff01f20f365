package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/snapshot"
)

var (
	snapshotApprovalID string
	snapshotOutput     string
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotApprovalID, "approval-id", "", "Approval id authorizing the snapshot (required)")
	snapshotCmd.Flags().StringVar(&snapshotOutput, "output", "", "Output directory (default: configured snapshot_dir)")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive the secret files with a sha256 manifest (gated)",
	Long: "Authorizes the approval id for action \"snapshot\" (consuming it),\n" +
		"then writes a tar.gz of the configured secret files plus a\n" +
		"manifest.json of per-file digests.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if snapshotApprovalID == "" {
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

	if err := g.Authorize(ctx, "snapshot", snapshotApprovalID); err != nil {
		return err
	}

	outDir := cfg.SnapshotDir
	if snapshotOutput != "" {
		outDir = snapshotOutput
	}

	report, err := snapshot.Create(cfg.SecretFiles, outDir)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot created: %s\n", report.Archive)
	for _, e := range report.Included {
		fmt.Printf("  %-40s %s (%d bytes)\n", e.Path, e.SHA256[:12], e.Size)
	}
	for _, m := range report.Missing {
		fmt.Printf("  %-40s skipped (missing)\n", m)
	}
	return nil
}
