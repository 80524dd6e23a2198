// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/config"
	"github.com/oj-judge/judged/internal/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "judged",
	Short: "Competitive-programming judge daemon",
	Long:  "judged orchestrates compilation, per-testcase evaluation, and score aggregation for a single submission against a subtask-decomposed test-data package.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./judged.yaml or /etc/judged/judged.yaml)")
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	level := zap.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.LogLevel, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	log.SetLogger(logger)
}
