package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/config"
	"github.com/nurpe/pestops-contracts/internal/console"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/logger"
)

var (
	consoleContractID string
	consoleLogFile    string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Edit a contract from the terminal",
	Long: `console opens a builder session against the business gateway and
drives it from the keyboard. Nothing is audited locally; saves go straight
to the gateway.

Examples:
  # Start a new contract
  contract-builder console

  # Edit an existing contract and keep a debug log
  contract-builder console --contract 1042 --log-file builder.log`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleContractID, "contract", "", "id of a persisted contract to edit")
	consoleCmd.Flags().StringVar(&consoleLogFile, "log-file", "", "write logs to this file instead of discarding them")
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConsole()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if consoleLogFile != "" {
		file, err := os.OpenFile(consoleLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()
		out = file
	}
	log := logger.NewWithWriter(cfg.Environment, out)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout, log)
	sessions := builder.NewManager(gw, builder.Options{
		LookupTimeout: cfg.Builder.LookupTimeout,
		FenceLookups:  cfg.Builder.FenceLookups,
	}, cfg.Builder.SessionTTL, log)

	session, err := sessions.Create(ctx, uuid.New(), consoleContractID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sessions.Close(session.ID())

	return console.Run(ctx, session)
}
