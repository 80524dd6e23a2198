// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package runner implements judge.RunnerTransport: a priority task queue
// with correlation-ID request/response matching. The actual wire hop to the
// remote runner process (RabbitMQ/Redis, per configuration) is out of this
// package's concern — Deliver and NotifyStarted are the seam a
// transport-specific consumer goroutine calls once it reads a matching
// message off the broker.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/judge"
	"github.com/oj-judge/judged/internal/tracing"
)

// pendingTask tracks one in-flight RunTask call awaiting a response.
type pendingTask struct {
	response chan judge.TaskResult
	errCh    chan error
	started  judge.StartedFunc
	startedMu sync.Mutex
	fired     bool
}

func (p *pendingTask) fireStarted() {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()
	if p.fired || p.started == nil {
		return
	}
	p.fired = true
	p.started()
}

// Transport implements judge.RunnerTransport over a correlation-ID keyed
// pending-task table, persisted to SQLite for crash visibility.
type Transport struct {
	mu      sync.Mutex
	pending map[string]*pendingTask

	db     *sql.DB
	tracer tracing.Tracer
	logger *zap.Logger

	seq uint64
}

// New opens (or creates) the SQLite-backed pending-task table at dbPath and
// returns a ready Transport. Pass ":memory:" for ephemeral/test use.
func New(dbPath string, tracer tracing.Tracer, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open runner task store: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS runner_tasks (
		correlation_id TEXT PRIMARY KEY,
		test_data_name TEXT NOT NULL,
		priority INTEGER NOT NULL,
		enqueued_at INTEGER NOT NULL,
		status TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runner task schema: %w", err)
	}

	return &Transport{
		pending: make(map[string]*pendingTask),
		db:      db,
		tracer:  tracer,
		logger:  logger,
	}, nil
}

func (t *Transport) Close() error {
	return t.db.Close()
}

// RunTask implements judge.RunnerTransport. It registers a correlation ID,
// persists a row so an operator can see in-flight tasks after a crash,
// hands off to dispatch (a real deployment plugs this into RabbitMQ; here
// the row itself is the durable record), and blocks
// until Deliver is called for that correlation ID or ctx is done.
func (t *Transport) RunTask(ctx context.Context, payload judge.TaskPayload, priority int, started judge.StartedFunc) (judge.TaskResult, error) {
	ctx, span := t.tracer.StartSpan(ctx, "judge.runTask")
	defer t.tracer.EndSpan(span)
	span.SetAttribute("test_data", payload.TestDataName)
	span.SetAttribute("priority", priority)

	corrID := t.nextCorrelationID()
	span.SetAttribute("correlation_id", corrID)

	task := &pendingTask{
		response: make(chan judge.TaskResult, 1),
		errCh:    make(chan error, 1),
		started:  started,
	}

	t.mu.Lock()
	t.pending[corrID] = task
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, corrID)
		t.mu.Unlock()
	}()

	if _, err := t.db.ExecContext(ctx,
		`INSERT INTO runner_tasks (correlation_id, test_data_name, priority, enqueued_at, status) VALUES (?, ?, ?, ?, 'pending')`,
		corrID, payload.TestDataName, priority, time.Now().Unix()); err != nil {
		t.logger.Warn("failed to persist runner task", zap.String("correlation_id", corrID), zap.Error(err))
	}

	if err := t.dispatch(ctx, corrID, payload, priority); err != nil {
		return judge.TaskResult{}, fmt.Errorf("dispatch task %s: %w", corrID, err)
	}

	select {
	case res := <-task.response:
		return res, nil
	case err := <-task.errCh:
		return judge.TaskResult{}, err
	case <-ctx.Done():
		return judge.TaskResult{}, ctx.Err()
	}
}

// dispatch is the seam a real deployment overrides to publish to the
// configured broker (RabbitMQ/Redis, per configuration — out of core
// scope). The default implementation is a stand-in that a consumer side
// (wired in cmd/judged) observes via the runner_tasks table; Deliver/
// NotifyStarted are how results and started-notifications flow back in.
func (t *Transport) dispatch(ctx context.Context, correlationID string, payload judge.TaskPayload, priority int) error {
	t.logger.Debug("runner task dispatched",
		zap.String("correlation_id", correlationID),
		zap.String("test_data", payload.TestDataName),
		zap.Int("priority", priority))
	return nil
}

// NotifyStarted is called by the broker consumer once the remote runner
// acknowledges it has begun executing the task for correlationID. It is a
// no-op if the correlation ID is unknown (already delivered, or never
// registered) or if started has already fired.
func (t *Transport) NotifyStarted(correlationID string) {
	t.mu.Lock()
	task, ok := t.pending[correlationID]
	t.mu.Unlock()
	if !ok {
		return
	}
	task.fireStarted()
}

// Deliver is called by the broker consumer with the final result for
// correlationID. It is a no-op if the correlation ID is unknown (timed out
// or never registered).
func (t *Transport) Deliver(correlationID string, result judge.TaskResult) {
	t.mu.Lock()
	task, ok := t.pending[correlationID]
	t.mu.Unlock()
	if !ok {
		t.logger.Warn("runner result for unknown correlation id", zap.String("correlation_id", correlationID))
		return
	}
	task.response <- result
	if _, err := t.db.Exec(`UPDATE runner_tasks SET status = 'done' WHERE correlation_id = ?`, correlationID); err != nil {
		t.logger.Warn("failed to mark runner task done", zap.String("correlation_id", correlationID), zap.Error(err))
	}
}

// DeliverError is called by the broker consumer when the remote runner
// reports a transport-level failure for correlationID (distinct from a
// program verdict, which is a successful TaskResult with a non-Accepted
// Type).
func (t *Transport) DeliverError(correlationID string, err error) {
	t.mu.Lock()
	task, ok := t.pending[correlationID]
	t.mu.Unlock()
	if !ok {
		return
	}
	task.errCh <- err
}

func (t *Transport) nextCorrelationID() string {
	t.mu.Lock()
	t.seq++
	n := t.seq
	t.mu.Unlock()
	return fmt.Sprintf("task-%d-%d", time.Now().UnixNano(), n)
}

var _ judge.RunnerTransport = (*Transport)(nil)
