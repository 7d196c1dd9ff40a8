package main

import (
	"fmt"

	"github.com/ds124wfegd/civicportal/config"
	"github.com/ds124wfegd/civicportal/internal/appServer"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "app",
		Short:         "Registration and venue booking service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./config/config.yaml, or $CIVIC_CONFIG)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgFile)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := appServer.Migrate(cfg); err != nil {
				return err
			}
			logrus.Info("Migrations applied")
			return nil
		},
	})
	return root
}

func runServe(cfgFile string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	return appServer.NewServer(cfg)
}

// loadConfig reads .env first so its values feed viper's env overrides.
func loadConfig(cfgFile string) (*config.Config, error) {
	if err := godotenv.Load(config.GetEnv("CIVIC_ENV_FILE", ".env")); err != nil {
		logrus.Debug("No .env file loaded")
	}

	viperInstance, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}
