package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/asinharvester/config"
	"sjsage522/asinharvester/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand
type app struct {
	cfg *config.Config
	log *logger.Logger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "asinharvester",
		Short: "Collect product identifiers from search result pages",
		Long: `asinharvester walks Amazon search result pages, collects the ASIN of every
product that passes the configured filters and saves them per account and category.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newStoreCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newWorkerCmd(a))

	return cmd
}

func (a *app) init() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	a.log = logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.log.Debug().
		Str("environment", cfg.Environment).
		Str("storage_backend", cfg.StorageBackend).
		Str("driver", cfg.Driver).
		Msg("Configuration loaded")
	return nil
}

func main() {
	// Set up signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
