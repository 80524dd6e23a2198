// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/compiler"
	"github.com/oj-judge/judged/internal/config"
	"github.com/oj-judge/judged/internal/judge"
	"github.com/oj-judge/judged/internal/progress"
	"github.com/oj-judge/judged/internal/runner"
	"github.com/oj-judge/judged/internal/store"
	"github.com/oj-judge/judged/internal/testdata"
	"github.com/oj-judge/judged/internal/tracing"
)

// daemon holds every wired adapter the HTTP surface drives a judge run
// through (§1's data flow: construct judger → preprocess → compile →
// judge → optionally runDiagnostics → persist/publish final result).
type daemon struct {
	cfg       *config.Config
	logger    *zap.Logger
	tracer    tracing.Tracer
	compiler  *compiler.Service
	testdata  *testdata.Cache
	runner    *runner.Transport
	store     *store.Store
	broadcast *progress.Broadcaster
}

// languageDescriptors maps a submission language to its diagnostics
// instrumented variant, if any (§4.F). Only cpp ships one in the reference
// deployment's compiler.DefaultLanguages table.
var languageDescriptors = map[string]judge.LanguageDescriptor{
	"c":       {Name: "c"},
	"cpp":     {Name: "cpp", DiagnosticsVariant: "cpp-diag"},
	"go":      {Name: "go"},
	"python3": {Name: "python3"},
}

// submitRequest is the wire shape for POST /v1/submissions. ProblemType
// selects which Judger specialization (§4.G) the daemon constructs.
type submitRequest struct {
	SubmissionID     string                `json:"submissionId"`
	ProblemType      string                `json:"problemType"` // "standard" | "answer" | "interactive"
	TestDataName     string                `json:"testDataName"`
	Language         string                `json:"language"`
	Source           string                `json:"source"`
	Extras           []judge.AttachedFile  `json:"extras,omitempty"`
	AnswerFile       string                `json:"answerFile,omitempty"`
	InteractorSource string                `json:"interactorSource,omitempty"`
	InteractorExtras []judge.AttachedFile  `json:"interactorExtras,omitempty"`
	Priority         int                   `json:"priority"`
	TimeLimitMs      int64                 `json:"timeLimitMs"`
	MemoryLimitMiB   int64                 `json:"memoryLimitMiB"`
	Subtasks         []judge.Subtask       `json:"subtasks"`
	SPJ              *judge.SourceFile     `json:"spj,omitempty"`
}

func (d *daemon) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.SubmissionID == "" {
		writeJSONError(w, http.StatusBadRequest, "submissionId is required")
		return
	}

	ctx := r.Context()
	dir, err := d.testdata.Resolve(ctx, req.TestDataName)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("resolve test data: %v", err))
		return
	}
	preview := testdata.NewPreviewReader(dir)

	testData := judge.TestData{Name: req.TestDataName, Subtasks: req.Subtasks, SPJ: req.SPJ}

	j, err := d.buildJudger(req, testData, preview)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer func() {
		if err := j.Cleanup(ctx); err != nil {
			d.logger.Warn("judger cleanup failed", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		}
	}()

	d.broadcast.EnsureStream(req.SubmissionID)
	// Set once Judge has returned; the only snapshot reported after that is
	// RunDiagnostics' one carrying the attached diagnostics.
	var afterJudge *judge.JudgeResult
	report := func(res judge.JudgeResult) {
		if afterJudge != nil {
			*afterJudge = res
		}
		d.broadcast.Publish(req.SubmissionID, res)
		if err := d.store.Save(ctx, req.SubmissionID, res); err != nil {
			d.logger.Warn("failed to persist progress snapshot", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		}
	}

	if err := j.PreprocessTestData(ctx); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("preprocess test data: %v", err))
		return
	}
	compileResult, err := j.Compile(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("compile: %v", err))
		return
	}
	if !compileResult.Success {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"compilation": compileResult})
		return
	}

	run, err := judge.NewRun(testData, j, d.logger, report, d.tracer)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("start run: %v", err))
		return
	}

	result, err := run.Judge(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("judge: %v", err))
		return
	}

	afterJudge = &result
	run.RunDiagnostics(ctx, judge.DiagnosticsConfig{
		Enabled:        d.cfg.Diagnostics.Enabled,
		MaxTimeRatio:   d.cfg.Diagnostics.MaxTimeRatio,
		MaxTime:        d.cfg.Diagnostics.MaxTimeMs,
		MaxMemoryRatio: d.cfg.Diagnostics.MaxMemoryRatio,
		MaxMemoryMiB:   d.cfg.Diagnostics.MaxMemoryMiB,
	}, req.TimeLimitMs, req.MemoryLimitMiB)

	if err := d.store.Save(ctx, req.SubmissionID, result); err != nil {
		d.logger.Warn("failed to persist final result", zap.String("submission_id", req.SubmissionID), zap.Error(err))
	}
	d.broadcast.Publish(req.SubmissionID, result)
	d.broadcast.CloseStream(req.SubmissionID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (d *daemon) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := d.store.Load(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("submission %s not found", id))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// buildJudger constructs the Judger specialization named by req.ProblemType
// (§4.G's three variants).
func (d *daemon) buildJudger(req submitRequest, testData judge.TestData, preview judge.PreviewReader) (judge.Judger, error) {
	lang, ok := languageDescriptors[req.Language]
	if !ok {
		lang = judge.LanguageDescriptor{Name: req.Language}
	}

	switch req.ProblemType {
	case "standard", "":
		source := judge.SourceFile{Source: req.Source, Language: req.Language}
		return judge.NewStandardJudger(testData, source, req.Extras, lang,
			d.compiler, d.runner, preview, req.Priority, d.cfg.DataDisplayLimit, d.tracer, d.logger), nil

	case "answer":
		return judge.NewAnswerSubmissionJudger(testData, req.AnswerFile,
			d.compiler, d.runner, preview, req.Priority, d.cfg.DataDisplayLimit, d.tracer, d.logger), nil

	case "interactive":
		source := judge.SourceFile{Source: req.Source, Language: req.Language}
		interactor := judge.SourceFile{Source: req.InteractorSource, Language: req.Language}
		return judge.NewInteractiveJudger(testData, source, req.Extras, interactor, req.InteractorExtras, lang,
			d.compiler, d.runner, preview, req.Priority, d.cfg.DataDisplayLimit, d.tracer, d.logger), nil

	default:
		return nil, fmt.Errorf("unknown problemType %q", req.ProblemType)
	}
}
