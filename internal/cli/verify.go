package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/ledger"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [approval-id]",
	Short: "Verify the ledger hash chain, or look up one approval",
	Long: "Without arguments, recomputes the hash chain over the whole ledger\n" +
		"and reports the first broken link, if any. With an approval id,\n" +
		"looks the record up by structured field match (never substring)\n" +
		"and prints its state.",
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		res := l.VerifyChain()
		if !res.Valid {
			return fmt.Errorf("%w: line %d: %s", ledger.ErrCorrupt, res.ErrorLine, res.Error)
		}
		fmt.Printf("Ledger chain intact: %d lines.\n", res.Lines)
		return nil
	}

	a, err := l.FindByID(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:      %s\n", a.ID)
	fmt.Printf("Reason:  %s\n", a.Reason)
	fmt.Printf("Issued:  %s by %s\n", a.IssuedAt.Format(time.RFC3339), a.IssuedBy)
	if a.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", a.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("Status:  %s\n", statusLabel(*a, time.Now().UTC()))
	if a.Consumed && a.ConsumedAt != nil {
		fmt.Printf("Spent:   %s on %q\n", a.ConsumedAt.Format(time.RFC3339), a.ConsumedAction)
	}
	return nil
}
