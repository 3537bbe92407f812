// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the design-engine CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/engine"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/internal/secrets"
	"github.com/pdiddy/design-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Set by PersistentPreRunE before any subcommand runs.
var (
	appConfig types.EngineConfig
	logger    *slog.Logger
)

// rootCmd is the base command for the design-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "design-engine",
	Short: "Generate, review, and check modular design documents",
	Long: `design-engine manages the design documents of a spec as separate modules
(frontend, mobile, server-api, server-logic, server-database, testing, and any
custom kinds). An AI provider writes each module; reviewers approve or reject
them; the spec can move on once every module is approved.

Each spec lives in its own directory under specsDir with a requirements.md.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		l, err := logging.New(os.Stderr, level, logging.Format(format))
		if err != nil {
			return err
		}
		logger = l

		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if cfg.Provider.APIKey == "" {
			s, err := secrets.Open(".secrets", ".env", logger)
			if err != nil {
				return err
			}
			cfg.Provider.APIKey = s.APIKey(cfg.Provider.Name)
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./design-engine.yaml or ~/.config/design-engine/design-engine.yaml)")
	rootCmd.PersistentFlags().String("specs-dir", "", "directory holding one subdirectory per spec")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print full error details")

	_ = viper.BindPFlag("specsDir", rootCmd.PersistentFlags().Lookup("specs-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("design-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "design-engine"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindEnv maps DESIGN_ENGINE_<SECTION>_<KEY> variables onto config keys.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DESIGN_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, types.DefaultEngineConfig())
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d types.EngineConfig) {
	v.SetDefault("specsDir", d.SpecsDir)

	v.SetDefault("modular.enabled", d.Modular.Enabled)
	v.SetDefault("modular.defaultModules", d.Modular.DefaultModules)
	v.SetDefault("modular.fileNamingPattern", d.Modular.FileNamingPattern)
	v.SetDefault("modular.autoDetectModules", d.Modular.AutoDetectModules)
	v.SetDefault("modular.parallelGeneration", d.Modular.ParallelGeneration)
	v.SetDefault("modular.maxConcurrency", d.Modular.MaxConcurrency)
	v.SetDefault("modular.cacheEnabled", d.Modular.CacheEnabled)
	v.SetDefault("modular.cacheTTL", d.Modular.CacheTTL)
	v.SetDefault("modular.customModulesFile", d.Modular.CustomModulesFile)
	v.SetDefault("modular.autoMigrateLegacy", d.Modular.AutoMigrateLegacy)
	v.SetDefault("modular.showMigrationPrompt", d.Modular.ShowMigrationPrompt)
	v.SetDefault("modular.validateCrossReferences", d.Modular.ValidateCrossReferences)
	v.SetDefault("modular.warnOnInconsistencies", d.Modular.WarnOnInconsistencies)

	v.SetDefault("provider.name", string(d.Provider.Name))
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.apiKey", d.Provider.APIKey)
	v.SetDefault("provider.command", d.Provider.Command)
	v.SetDefault("provider.captureStdout", d.Provider.CaptureStdout)
	v.SetDefault("provider.timeout", d.Provider.Timeout)

	v.SetDefault("retry.maxRetries", d.Retry.MaxRetries)
	v.SetDefault("retry.initialDelay", d.Retry.InitialDelay)
	v.SetDefault("retry.exponential", d.Retry.Exponential)

	v.SetDefault("scheduler.batchDelay", d.Scheduler.BatchDelay)
	v.SetDefault("scheduler.stopOnFirstError", d.Scheduler.StopOnFirstError)

	v.SetDefault("ledger.enabled", d.Ledger.Enabled)
	v.SetDefault("ledger.path", d.Ledger.Path)
}

// loadConfig decodes the engine settings held by v over the defaults.
func loadConfig(v *viper.Viper) (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, apperr.Configuration("loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, apperr.Configuration("loading configuration", err)
	}
	return cfg, nil
}

// newEngine builds the engine for one command invocation.
func newEngine(progress io.Writer) (*engine.Engine, error) {
	return engine.New(appConfig, engine.Deps{Logger: logger, Progress: progress})
}

// reportError prints the user-facing message and suggested actions. The
// technical detail follows for validation errors or under --verbose.
func reportError(w io.Writer, err error, verbose bool) {
	fmt.Fprintf(w, "error: %s\n", apperr.UserMessage(err))
	if verbose || apperr.Classify(err) == apperr.CategoryValidation {
		fmt.Fprintf(w, "  %s\n", apperr.Detail(err))
	}
	fmt.Fprintf(w, "  actions: %s\n", strings.Join(apperr.Actions(err), ", "))
	if errors.Is(err, engine.ErrLegacyPending) {
		fmt.Fprintln(w, "  run `design-engine migrate <spec>` first, or pass --ignore-legacy")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		reportError(os.Stderr, err, verbose)
		os.Exit(1)
	}
}
