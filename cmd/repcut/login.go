package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/heimdex/repcut/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the backend token in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Backend token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}

		token := strings.TrimSpace(string(raw))
		if token == "" {
			return fmt.Errorf("a token is required")
		}

		if err := (config.KeyringStore{}).Set(config.KeyringUser(), token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Println("Token saved to keyring for", config.KeyringUser())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
