// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package store persists judge results in SQLite: WAL journal mode, a
// busy-timeout pragma, one row per submission updated in place on every
// progress tick.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/judge"
)

// Store is a pure-Go SQLite sink for judge.JudgeResult snapshots, keyed by
// submission ID.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates (or reuses) the results table at dbPath.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open results store: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			logger.Warn("failed to enable WAL mode", zap.Error(err))
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", zap.Error(err))
	}

	schema := `
	CREATE TABLE IF NOT EXISTS judge_results (
		submission_id TEXT PRIMARY KEY,
		result_json   TEXT NOT NULL,
		updated_at    INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Save upserts the current snapshot for submissionID. Intended to be
// plugged in as one subscriber of judge.ProgressFunc (the core calls only
// the plain callback; Store is one of its listeners, wired in cmd/judged).
func (s *Store) Save(ctx context.Context, submissionID string, result judge.JudgeResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal judge result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO judge_results (submission_id, result_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(submission_id) DO UPDATE SET result_json = excluded.result_json, updated_at = excluded.updated_at`,
		submissionID, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save judge result for %s: %w", submissionID, err)
	}
	return nil
}

// Load returns the most recently saved snapshot for submissionID.
func (s *Store) Load(ctx context.Context, submissionID string) (judge.JudgeResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM judge_results WHERE submission_id = ?`, submissionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return judge.JudgeResult{}, fmt.Errorf("no result stored for submission %s", submissionID)
	}
	if err != nil {
		return judge.JudgeResult{}, fmt.Errorf("load judge result for %s: %w", submissionID, err)
	}

	var result judge.JudgeResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return judge.JudgeResult{}, fmt.Errorf("unmarshal stored judge result: %w", err)
	}
	return result, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
