package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/filelock"
)

func init() {
	rootCmd.AddCommand(lockCmd)
}

var lockCmd = &cobra.Command{
	Use:   "lock [paths...]",
	Short: "Lock secret files (restrictive mode + sentinel)",
	Long: "Sets mode 0400 and writes a .locked sentinel for each path.\n" +
		"Without arguments, locks the configured secret files. Locking an\n" +
		"already-locked file is a no-op. Locking needs no approval;\n" +
		"unlocking does.",
	RunE: runLock,
}

func runLock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res := filelock.Lock(resolvePaths(cfg, args))
	printBatch(res)
	return res.Err()
}

func printBatch(res filelock.Result) {
	for _, p := range res.Paths {
		switch {
		case p.Err != nil:
			fmt.Printf("%-40s ERROR: %v\n", p.Path, p.Err)
		case p.Skipped:
			fmt.Printf("%-40s skipped (missing)\n", p.Path)
		default:
			fmt.Printf("%-40s %s\n", p.Path, p.State)
		}
	}
}
