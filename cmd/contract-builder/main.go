package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "contract-builder",
	Short: "Pest-control contract builder",
	Long: `contract-builder serves the contract builder API and ships a
keyboard-only terminal console for the same editing sessions.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, consoleCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
