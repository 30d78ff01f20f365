package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/audit"
)

var auditLimit int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum rows to show (0 = all)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded authorization decisions, newest first",
	Long: "Prints the decision audit trail: every authorize attempt, tamper\n" +
		"event, and its outcome. This is distinct from the approval ledger,\n" +
		"which records issuance and consumption.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := audit.Open(ctx, cfg.AuditPath())
	if err != nil {
		return err
	}
	defer store.Close()

	decisions, err := store.List(ctx, auditLimit)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}

	fmt.Printf("%-20s %-15s %-22s %-18s %s\n", "TIME", "ACTION", "APPROVAL", "OUTCOME", "DETAIL")
	for _, d := range decisions {
		fmt.Printf("%-20s %-15s %-22s %-18s %s\n",
			d.Timestamp.Format("2006-01-02 15:04:05"),
			d.Action,
			d.ApprovalID,
			d.Outcome,
			truncate(d.Detail, 50),
		)
	}
	return nil
}
