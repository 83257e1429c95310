package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/repcut/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "repcut",
	Short:         "Repcut cuts workout videos into tagged exercise segments.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveFlags)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("repcut %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
