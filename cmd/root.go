// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/internal/config"
	"github.com/crucible-dev/crucible-cli/internal/observability"
)

var (
	cfgFile   string
	appConfig *config.Config
)

// NewRootCommand builds the root command and its subcommands. A fresh
// instance per invocation keeps flag state from leaking between runs in
// tests.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "crucible",
		Short:   "Crucible runs an autonomous, sandboxed self-correction loop over a failing project.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := initializeViper()
			if err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// A fallback logger so the failure itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "crucible"})
				return err
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting crucible.", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./crucible.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newTraceCmd())
	return rootCmd
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeViper reads config file and environment into a fresh viper
// instance seeded with defaults.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("crucible")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CRUCIBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env apply.
	}
	return v, nil
}
