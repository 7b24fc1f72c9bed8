package main

import (
	"fmt"

	"github.com/chakriappu140/collaborative-study-planner/internal/database"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database_migrated", map[string]interface{}{"driver": cfg.DB.Driver})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
