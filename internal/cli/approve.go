package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	approveReason   string
	approvePin      string
	approveDuration time.Duration
)

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().StringVar(&approveReason, "reason", "", "Why this approval is being issued (required)")
	approveCmd.Flags().StringVar(&approvePin, "pin", "", "PIN (prefer the interactive prompt)")
	approveCmd.Flags().DurationVar(&approveDuration, "duration", 0, "Validity period (e.g., 5m, 1h). Default: no expiry, still single-use")
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Issue a single-use approval id after PIN verification",
	Long: "Verifies the PIN and appends an approval record to the ledger.\n" +
		"The printed id authorizes exactly one gated action. Nothing is\n" +
		"written when verification fails.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	if approveReason == "" {
		return fmt.Errorf("%w: --reason is required", errUsage)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	pin := approvePin
	if pin == "" {
		pin, err = promptPIN("Enter PIN to approve")
		if err != nil {
			return err
		}
	}

	id, err := newIssuer(cfg, l).Issue(pin, approveReason, approveDuration)
	if err != nil {
		return err
	}

	fmt.Printf("Approval issued: %s\n", id)
	if approveDuration > 0 {
		fmt.Printf("Valid for %s, single use.\n", approveDuration)
	} else {
		fmt.Println("Single use, no expiry.")
	}
	return nil
}
