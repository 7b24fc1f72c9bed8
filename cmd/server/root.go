package main

import (
	"fmt"
	"os"

	"github.com/chakriappu140/collaborative-study-planner/internal/config"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/spf13/cobra"
)

// Version is injected at build time:
//
//	go build -ldflags "-X main.Version=1.2.3" ./cmd/server
var Version = "dev"

var (
	flagEnvFile string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "studyplanner",
	Short: "Collaborative study planner API server",
	Long: `studyplanner serves the study group REST API and the realtime
websocket used for chat, notifications and the shared whiteboard.

  studyplanner            Start the server (same as "serve")
  studyplanner migrate    Bring the database schema up to date and exit`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagEnvFile != "" {
			if err := os.Setenv("ENV_FILE", flagEnvFile); err != nil {
				return fmt.Errorf("setting env file: %w", err)
			}
		}
		logger.Init()
		cfg = config.Load()
		utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
		return nil
	},
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Path to a .env file (default: $ENV_FILE or .env)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
