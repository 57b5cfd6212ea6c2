package main

import (
	"fmt"
	"os"

	"github.com/aretw0/intentflow/internal/cli"
	"github.com/aretw0/intentflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intentflow",
	Short: "Intentflow tracks cross-chain intents from submission to proof",
	Long: `Intentflow keeps the lifecycle state of cross-chain intents (auction,
authorization, execution and proofs) and replicates it across every process
sharing a workspace.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default intentflow.yaml when present)")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace name (overrides the configured one)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if ws, _ := cmd.Flags().GetString("workspace"); ws != "" {
		cfg.Workspace = ws
	}
	return cfg, nil
}

// bootstrap loads the configuration and builds the runtime. Callers close it.
func bootstrap(cmd *cobra.Command) (*cli.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger := cli.CreateLogger(cfg.Log, debug)
	rt, err := cli.Bootstrap(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}
	return rt, nil
}
