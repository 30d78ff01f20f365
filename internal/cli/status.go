package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/filelock"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [paths...]",
	Short: "Show lock state of secret files",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, p := range filelock.Status(resolvePaths(cfg, args)) {
		if p.Err != nil {
			fmt.Printf("%-40s ERROR: %v\n", p.Path, p.Err)
			continue
		}
		fmt.Printf("%-40s %s\n", p.Path, p.State)
	}
	return nil
}
