// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config loads the judge daemon's configuration, mirroring the
// teacher's layered viper+mapstructure Config struct (cmd/looms/config.go):
// environment variables > config file > defaults. No CLI flags are bound.
package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "JUDGED"
	defaultConfigFileName = "judged"
)

// Config is the judge daemon's read-only configuration snapshot (§6).
type Config struct {
	ServerUrl        string            `mapstructure:"server_url"`
	ServerToken      string            `mapstructure:"server_token"`
	RabbitMQUrl      string            `mapstructure:"rabbitmq_url"`
	RedisUrl         string            `mapstructure:"redis_url"`
	TestData         TestDataConfig    `mapstructure:"test_data"`
	Priority         int               `mapstructure:"priority"`
	TempDirectory    string            `mapstructure:"temp_directory"`
	DataDisplayLimit int               `mapstructure:"data_display_limit"`
	Diagnostics      DiagnosticsConfig `mapstructure:"diagnostics"`
	Store            StoreConfig       `mapstructure:"store"`
	Progress         ProgressConfig    `mapstructure:"progress"`
	Metrics          MetricsConfig     `mapstructure:"metrics"`
	Compiler         CompilerConfig    `mapstructure:"compiler"`
	LogLevel         string            `mapstructure:"log_level"`
}

// CompilerConfig configures the local compiler shim (internal/compiler).
type CompilerConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// TestDataConfig locates and caches test-data packages (§10 internal/testdata).
type TestDataConfig struct {
	RootDir    string `mapstructure:"root_dir"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	SchemaPath string `mapstructure:"schema_path"`
}

// DiagnosticsConfig mirrors §4.F's eligibility ceilings.
type DiagnosticsConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxTimeRatio   float64 `mapstructure:"max_time_ratio"`
	MaxTimeMs      int64   `mapstructure:"max_time_ms"`
	MaxMemoryRatio float64 `mapstructure:"max_memory_ratio"`
	MaxMemoryMiB   int64   `mapstructure:"max_memory_mib"`
}

// StoreConfig configures the persistent result sink (internal/store).
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ProgressConfig configures the SSE progress fan-out (internal/progress).
type ProgressConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig configures the Prometheus exporter (internal/metrics).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

var (
	global     *Config
	globalOnce sync.Once
	globalMu   sync.RWMutex
)

// Load reads configuration from cfgFile (if non-empty), falling back to
// ./judged.yaml and /etc/judged/, then layers JUDGED_-prefixed environment
// variables and defaults on top, and stores the result as the process-wide
// snapshot returned by Get.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/judged/")
		v.SetConfigName(defaultConfigFileName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	globalMu.Lock()
	global = &cfg
	globalMu.Unlock()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("priority", 0)
	v.SetDefault("temp_directory", "/tmp/judged")
	v.SetDefault("data_display_limit", 8192)

	v.SetDefault("test_data.root_dir", "/var/lib/judged/testdata")
	v.SetDefault("test_data.schema_path", "/etc/judged/problem.schema.json")

	v.SetDefault("diagnostics.enabled", false)
	v.SetDefault("diagnostics.max_time_ratio", 3.0)
	v.SetDefault("diagnostics.max_time_ms", 10000)
	v.SetDefault("diagnostics.max_memory_ratio", 2.0)
	v.SetDefault("diagnostics.max_memory_mib", 1024)

	v.SetDefault("compiler.timeout_seconds", 10)
	v.SetDefault("log_level", "info")

	v.SetDefault("store.path", "/var/lib/judged/results.db")
	v.SetDefault("progress.addr", ":8089")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
}

// Get returns the process-wide configuration snapshot set by the most
// recent Load call, or a zero-value Config if Load has never run.
func Get() *Config {
	globalOnce.Do(func() {
		globalMu.Lock()
		if global == nil {
			global = &Config{}
		}
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}
