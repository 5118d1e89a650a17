package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/webhook-bridge/src/config"
	"github.com/jiaming2012/webhook-bridge/src/telemetry"
)

var rootCmd = &cobra.Command{
	Use:           "webhook-bridge",
	Short:         "Translate trading webhooks into NinjaTrader and MetaTrader commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig applies the --config and --env-file flags before the usual
// environment based loading.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := map[string]string{
		"config":   "BRIDGE_CONFIG",
		"env-file": "BRIDGE_ENV_FILE",
	}

	for flag, env := range flags {
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, fmt.Errorf("loadConfig: %w", err)
		}

		if v != "" {
			if err := os.Setenv(env, v); err != nil {
				return nil, fmt.Errorf("loadConfig: %w", err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if err := telemetry.SetupLogging(cfg.LogLevel, cfg.OtelEnabled); err != nil {
		return nil, err
	}

	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (overrides $BRIDGE_CONFIG).")
	rootCmd.PersistentFlags().String("env-file", "", "Env file to load (overrides $BRIDGE_ENV_FILE, default .env).")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides $LOG_LEVEL).")

	rootCmd.AddCommand(serveCmd)
	addTerminalCommands(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("webhook-bridge: %v", err)
	}
}
