// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/compiler"
	"github.com/oj-judge/judged/internal/config"
	"github.com/oj-judge/judged/internal/log"
	"github.com/oj-judge/judged/internal/progress"
	"github.com/oj-judge/judged/internal/runner"
	"github.com/oj-judge/judged/internal/secrets"
	"github.com/oj-judge/judged/internal/store"
	"github.com/oj-judge/judged/internal/testdata"
	"github.com/oj-judge/judged/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the judge daemon",
	Long: `Run the judge daemon.

Exposes a submission endpoint, an SSE progress stream, a Prometheus
metrics endpoint, and a health check. Press Ctrl+C to shut down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "submission API listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logger := log.Logger()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()
	tracer := tracing.New("judged")

	if err := os.MkdirAll(cfg.TempDirectory, 0o755); err != nil {
		return fmt.Errorf("create temp directory %s: %w", cfg.TempDirectory, err)
	}

	if token := cfg.ServerToken; token != "" {
		if err := secrets.StoreServerToken(token); err != nil {
			logger.Warn("failed to store server token in keyring", zap.Error(err))
		}
	}

	comp := compiler.New(cfg.TempDirectory, time.Duration(cfg.Compiler.TimeoutSeconds)*time.Second, nil, tracer, logger)

	tdCache, err := testdata.New(context.Background(), cfg.TestData.RootDir, cfg.TestData.S3Bucket, cfg.TestData.S3Region, cfg.TestData.SchemaPath, logger)
	if err != nil {
		return fmt.Errorf("init test-data cache: %w", err)
	}
	defer tdCache.Close()

	runnerTransport, err := runner.New(fmt.Sprintf("%s/runner.db", cfg.TempDirectory), tracer, logger)
	if err != nil {
		return fmt.Errorf("init runner transport: %w", err)
	}
	defer runnerTransport.Close()

	resultStore, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer resultStore.Close()

	broadcaster := progress.New(logger)

	d := &daemon{
		cfg:       cfg,
		logger:    logger,
		tracer:    tracer,
		compiler:  comp,
		testdata:  tdCache,
		runner:    runnerTransport,
		store:     resultStore,
		broadcast: broadcaster,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/submissions", d.handleSubmit)
	mux.HandleFunc("GET /v1/submissions/{id}", d.handleGetResult)
	mux.Handle("GET /progress", broadcaster.Server())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr, _ := cmd.Flags().GetString("addr")
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("judge daemon listening", zap.String("address", addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// submissionErrorResponse is written on any request the daemon rejects
// before reaching the judge core.
type submissionErrorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(submissionErrorResponse{Error: msg})
}
