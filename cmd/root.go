// Package cmd holds the orderhub command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orderhub/config"
	"orderhub/logging"
)

// NewRootCmd builds the command tree. Running it without a subcommand
// serves.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "orderhub",
		Short:         "Restaurant ordering backend with realtime order and chat updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./orderhub.yaml if present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and realtime server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd, cfgFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, cfgFile)
			},
		},
	)
	return root
}

// Execute is called by main.main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "orderhub: %v\n", err)
		os.Exit(1)
	}
}

// setup loads .env, the configuration and the logger, in that order.
func setup(cfgFile string) (config.Config, *zap.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}

	switch {
	case errors.Is(envErr, fs.ErrNotExist):
		log.Warn("no .env file found, using environment variables")
	case envErr != nil:
		log.Warn("failed to load .env file", zap.Error(envErr))
	}
	return cfg, log, nil
}
