package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gihan9a/modelsync/internal/config"
	"gihan9a/modelsync/internal/logger"
	"gihan9a/modelsync/internal/server"
)

var version = "dev"

// newRootCmd creates the modelsync command
func newRootCmd() *cobra.Command {
	var (
		configPath     string
		generateConfig bool
		generatePath   string
		overrides      config.Overrides
	)

	cmd := &cobra.Command{
		Use:          "modelsync",
		Short:        "Application model server",
		Long:         "modelsync keeps an application model, applies changes to it and streams them to subscribers.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if generateConfig {
				if err := config.SaveDefaultConfig(generatePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration file generated at %s\n", generatePath)
				return nil
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				if cmd.Flags().Changed("config") {
					return err
				}
				cfg = config.Default()
			}
			cfg.Apply(overrides)

			base := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
			defer base.Sync()
			log := logger.For(base, logger.ComponentConfig)
			if err != nil {
				log.Infow("Using default configuration", "reason", err)
			}

			srv, err := server.NewModelServer(cfg, base)
			if err != nil {
				return err
			}
			defer srv.Close()

			if cfg.ModelFile != "" && cfg.WatchModel {
				if err := srv.WatchModelFile(); err != nil {
					return err
				}
			}
			return srv.Start()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "config.yml", "Path to configuration file")
	flags.BoolVar(&generateConfig, "generate-config", false, "Generate a default configuration file and exit")
	flags.StringVar(&generatePath, "config-path", "config.yml", "Path where config file should be generated")
	flags.StringVarP(&overrides.ModelFile, "model", "m", "", "Model file to serve (overrides config)")
	flags.IntVarP(&overrides.Port, "port", "p", 0, "Port to listen on (overrides config)")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
