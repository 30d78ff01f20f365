package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantops/secretgate/internal/pinstore"
)

func init() {
	rootCmd.AddCommand(setPinCmd)
}

var setPinCmd = &cobra.Command{
	Use:   "set-pin",
	Short: "Set or rotate the approval PIN",
	Long: "Prompts for a new PIN (twice) and stores a salted PBKDF2 hash.\n" +
		"The raw PIN is never written to disk. Rotating the PIN invalidates\n" +
		"verification against the old one; existing approvals stay valid.",
	Args: usageArgs(cobra.NoArgs),
	RunE: runSetPin,
}

func runSetPin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := pinstore.NewStore(cfg.PinPath())

	if store.Exists() {
		fmt.Fprint(os.Stderr, "A PIN already exists. Overwrite? Type YES to confirm: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		if strings.TrimSpace(line) != "YES" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	pin, err := promptPIN("Enter new PIN")
	if err != nil {
		return err
	}
	confirm, err := promptPIN("Confirm new PIN")
	if err != nil {
		return err
	}
	if pin != confirm {
		return fmt.Errorf("PINs do not match")
	}

	if err := store.Set(pin); err != nil {
		return err
	}
	fmt.Printf("PIN set (stored as salted hash in %s)\n", cfg.PinPath())
	return nil
}
