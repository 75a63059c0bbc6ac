package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	"github.com/zatekoja/clinicbooking/pkg/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Maintenance commands for the clinic booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCommand())
	root.AddCommand(newReindexCommand())
	root.AddCommand(newSequenceCommand())

	return root
}

// connect loads configuration, sets up logging and opens the database
func connect() (*config.Config, *postgres.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger("bookingctl", cfg.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pgClient, nil
}
