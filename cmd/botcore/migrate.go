package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/generalbots/botcore/internal/config"
	"github.com/generalbots/botcore/internal/store"
)

func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Ensure the configured database schema exists",
		Long: `Opens every C10 persistence backend against the configured
database, which creates any missing table the first time a fresh
database is pointed at botcore (internal/store's SQL-backed stores
create their schema on open rather than through a separate migration
file set).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "botcore.yaml", "Path to YAML configuration file")
	return cmd
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dialect := dialectFor(cfg.Database.Driver)

	cs, err := store.OpenSQLConfigStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return fmt.Errorf("ensure config store schema: %w", err)
	}
	defer cs.Close()

	ds, err := store.OpenSQLDeclarationStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return fmt.Errorf("ensure declaration store schema: %w", err)
	}
	defer ds.Close()

	as, err := store.OpenSQLAssociationStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return fmt.Errorf("ensure association store schema: %w", err)
	}
	defer as.Close()

	ms, err := store.OpenSQLMemoryStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return fmt.Errorf("ensure memory store schema: %w", err)
	}
	defer ms.Close()

	fmt.Println("database schema is up to date")
	return nil
}
