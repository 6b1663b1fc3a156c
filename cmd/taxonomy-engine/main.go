// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the taxonomy-engine CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/taxonomy-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitRuntime = 1
	exitConfig  = 2
)

// logger is built from --log-format before any subcommand runs.
var logger = zap.NewNop()

// rootCmd is the base command for the taxonomy-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "taxonomy-engine",
	Short: "Build a three-level research taxonomy from text and citations",
	Long: `taxonomy-engine classifies a corpus of scholarly documents into major
research streams, subtopics and micro-topics. It fuses a TF-IDF/LSA text
representation with a bibliographic coupling network, splits the corpus into
streams with Ward clustering, and subdivides each stream with NMF.

Subcommands: classify runs the pipeline, network summarises the citation
network only, tree and documents browse a stored run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("log-format")
		level, _ := cmd.Flags().GetString("log-level")
		l, err := newLogger(format, level)
		if err != nil {
			return configError(err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./taxonomy-engine.yaml or ~/.config/taxonomy-engine/taxonomy-engine.yaml)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func initConfig() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("taxonomy-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "taxonomy-engine"))
		}
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(format, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json", "prod", "production":
		cfg = zap.NewProductionConfig()
	case "console", "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q: use console or json", format)
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// configError marks err as a configuration failure for the exit code.
func configError(err error) error {
	if errors.Is(err, types.ErrInvalidConfig) || errors.Is(err, types.ErrInvalidWeight) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
}

func exitCode(err error) int {
	if errors.Is(err, types.ErrInvalidConfig) || errors.Is(err, types.ErrInvalidWeight) {
		return exitConfig
	}
	return exitRuntime
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
