// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the triage-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/internal/logging"
	"github.com/pdiddy/triage-engine/internal/secrets"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// engineCfg is resolved from defaults, config file, env, and flags
	// before any subcommand runs.
	engineCfg types.EngineConfig

	logger = zap.NewNop()
)

// rootCmd is the base command for the triage-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "triage-engine",
	Short: "Active-learning triage for systematic literature reviews",
	Long: `triage-engine ranks the citations of a literature review by relevance.
A reviewer labels a handful of relevant and irrelevant citations each
iteration; training rescores the rest so the most promising citations
surface first. After a fixed number of iterations, or on request, the
ranking is final and can be exported.

Projects live in a local SQLite database. Every subcommand operates on that
database; serve exposes the same operations over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}

		s, err := secrets.Load(secrets.DefaultDir, log)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		secrets.Apply(&cfg.Scoring, s)

		engineCfg = cfg
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./triage-engine.yaml or ~/.config/triage-engine/config.yaml)")
	pf.String("db", "", "SQLite database path (default: triage/triage.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("actor", "", "name recorded on writes (default: $USER)")

	_ = viper.BindPFlag("store.path", pf.Lookup("db"))
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("triage-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "triage-engine"))
		}
	}

	viper.SetEnvPrefix("TRIAGE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
