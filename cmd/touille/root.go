package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/pkg/logger"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "touille",
		Short:         "Touille operator CLI",
		Long:          "Extract recipes from cooking videos on the command line and manage a touille deployment.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newProcessCommand(&configFlag))
	rootCmd.AddCommand(newMigrateCommand(&configFlag))
	rootCmd.AddCommand(newStatsCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	rootCmd.AddCommand(newHealthCommand(&configFlag))

	return rootCmd
}

// loadConfig resolves the configuration for one command run. The
// --config flag wins over the TOUILLE_CONFIG environment variable.
func loadConfig(configFlag *string) (*config.Config, error) {
	path := *configFlag
	if path == "" {
		path = os.Getenv("TOUILLE_CONFIG")
	}
	return config.Load(path)
}

func newCLILogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Development: cfg.App.Debug,
	})
}
