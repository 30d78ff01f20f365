package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/ledger"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List approvals with their current status",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	approvals, err := l.List()
	if err != nil {
		return err
	}
	if len(approvals) == 0 {
		fmt.Println("No approvals.")
		return nil
	}

	now := time.Now().UTC()
	fmt.Printf("%-22s %-10s %-40s %s\n", "ID", "STATUS", "REASON", "ISSUED")
	for _, a := range approvals {
		fmt.Printf("%-22s %-10s %-40s %s\n",
			a.ID,
			statusLabel(a, now),
			truncate(a.Reason, 40),
			a.IssuedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func statusLabel(a ledger.Approval, now time.Time) string {
	switch {
	case a.Consumed:
		return "consumed"
	case a.Expired(now):
		return "expired"
	default:
		return "active"
	}
}

// truncate shortens s to at most max display runes. Slicing on runes
// keeps multibyte reasons from being cut mid-character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
