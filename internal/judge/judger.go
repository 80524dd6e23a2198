// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oj-judge/judged/internal/metrics"
	"github.com/oj-judge/judged/internal/tracing"
)

// LanguageDescriptor names a submission's language and, optionally, an
// instrumented variant used by the diagnostics driver (§4.F).
type LanguageDescriptor struct {
	Name               string
	DiagnosticsVariant string // empty if this language has no instrumented variant
}

// DiagnosticsCapable is implemented by Judgers that can re-judge a case
// against an instrumented executable. The orchestrator's diagnostics driver
// (§4.F) type-asserts a Judger to this interface; a Judger that doesn't
// implement it is simply treated as SupportDiagnostics() == false.
//
// This is additive to the minimal §4.G contract, which doesn't say *how* a
// re-judged case is wired to the instrumented binary instead of the primary
// one — this is an implementation decision (see DESIGN.md).
type DiagnosticsCapable interface {
	Judger
	JudgeTestcaseDiagnostics(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error)
}

// baseJudger holds the state shared by every Judger specialization.
type baseJudger struct {
	testData TestData
	lang     LanguageDescriptor
	compiler CompilerService
	runner   RunnerTransport
	preview  PreviewReader
	priority int
	// dataDisplayLimit caps file preview content length (§6 DataDisplayLimit).
	dataDisplayLimit int
	logger           *zap.Logger
	tracer           tracing.Tracer

	mu      sync.Mutex
	spjExe  ExecutableHandle
	userExe ExecutableHandle
	diagExe ExecutableHandle
}

func (b *baseJudger) PreprocessTestData(ctx context.Context) error {
	if b.testData.SPJ == nil {
		return nil
	}
	handle, result, err := b.compiler.Compile(ctx, *b.testData.SPJ, nil, b.priority)
	if err != nil {
		return fmt.Errorf("compile special judge: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("special judge compilation failed: %s", result.Message)
	}
	b.mu.Lock()
	b.spjExe = handle
	b.mu.Unlock()
	return nil
}

func (b *baseJudger) SupportDiagnostics() bool {
	return b.lang.DiagnosticsVariant != ""
}

func (b *baseJudger) CompileWithDiagnostics(ctx context.Context, source SourceFile, extras []AttachedFile) (CompilationResult, error) {
	if !b.SupportDiagnostics() {
		return CompilationResult{}, fmt.Errorf("language %s has no instrumented variant", b.lang.Name)
	}
	instrumented := source
	instrumented.Language = b.lang.DiagnosticsVariant
	handle, result, err := b.compiler.Compile(ctx, instrumented, extras, b.priority)
	if err != nil {
		return CompilationResult{}, err
	}
	if result.Success {
		b.mu.Lock()
		b.diagExe = handle
		b.mu.Unlock()
	}
	return result, nil
}

func (b *baseJudger) Cleanup(ctx context.Context) error {
	return nil
}

func (b *baseJudger) preview2(ctx context.Context, tc TestcaseJudge) (FilePreview, FilePreview, error) {
	input, err := b.preview.ReadFileLength(ctx, tc.Input, b.dataDisplayLimit)
	if err != nil {
		return FilePreview{}, FilePreview{}, fmt.Errorf("read input preview: %w", err)
	}
	output, err := b.preview.ReadFileLength(ctx, tc.Output, b.dataDisplayLimit)
	if err != nil {
		return FilePreview{}, FilePreview{}, fmt.Errorf("read output preview: %w", err)
	}
	name := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return FilePreview{Name: name(tc.Input), Content: input},
		FilePreview{Name: name(tc.Output), Content: output}, nil
}

func detailsFromResult(res TaskResult, in, out FilePreview) TestcaseDetails {
	return TestcaseDetails{
		Type:          res.Type,
		Time:          res.Time,
		Memory:        res.Memory,
		ScoringRate:   res.ScoringRate,
		UserError:     res.UserError,
		UserOutput:    res.UserOutput,
		SPJMessage:    res.SPJMessage,
		SystemMessage: res.SystemMessage,
		Input:         in,
		Output:        out,
	}
}

// StandardJudger compares a compiled user program's output against the
// expected output (directly, or via a special judge).
type StandardJudger struct {
	baseJudger
	source SourceFile
	extras []AttachedFile
}

// NewStandardJudger constructs a Judger for a normal (non-interactive,
// non-answer-submission) problem.
func NewStandardJudger(testData TestData, source SourceFile, extras []AttachedFile, lang LanguageDescriptor,
	compiler CompilerService, runner RunnerTransport, preview PreviewReader, priority, dataDisplayLimit int,
	tracer tracing.Tracer, logger *zap.Logger) *StandardJudger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}
	return &StandardJudger{
		baseJudger: baseJudger{
			testData: testData, lang: lang, compiler: compiler, runner: runner,
			preview: preview, priority: priority, dataDisplayLimit: dataDisplayLimit, logger: logger, tracer: tracer,
		},
		source: source,
		extras: extras,
	}
}

func (j *StandardJudger) Compile(ctx context.Context) (CompilationResult, error) {
	start := time.Now()
	handle, result, err := j.compiler.Compile(ctx, j.source, j.extras, j.priority)
	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return CompilationResult{}, err
	}
	if result.Success {
		j.mu.Lock()
		j.userExe = handle
		j.mu.Unlock()
	}
	return result, nil
}

func (j *StandardJudger) CompileWithDiagnostics(ctx context.Context) (CompilationResult, error) {
	return j.baseJudger.CompileWithDiagnostics(ctx, j.source, j.extras)
}

func (j *StandardJudger) JudgeTestcase(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	j.mu.Lock()
	userExe, spjExe := j.userExe, j.spjExe
	j.mu.Unlock()
	return j.judgeWith(ctx, tc, started, userExe, spjExe)
}

func (j *StandardJudger) JudgeTestcaseDiagnostics(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	j.mu.Lock()
	diagExe, spjExe := j.diagExe, j.spjExe
	j.mu.Unlock()
	if diagExe == nil {
		return TestcaseDetails{}, fmt.Errorf("diagnostics executable not compiled")
	}
	return j.judgeWith(ctx, tc, started, diagExe, spjExe)
}

func (j *StandardJudger) judgeWith(ctx context.Context, tc TestcaseJudge, started StartedFunc, userExe, spjExe ExecutableHandle) (TestcaseDetails, error) {
	ctx, span := j.tracer.StartSpan(ctx, "judge.testcase")
	defer j.tracer.EndSpan(span)

	in, out, err := j.preview2(ctx, tc)
	if err != nil {
		return TestcaseDetails{}, err
	}
	payload := TaskPayload{TestDataName: j.testData.Name, UserExecutableName: exeName(userExe), SPJExecutableName: exeName(spjExe)}
	res, err := j.runner.RunTask(ctx, payload, j.priority, started)
	if err != nil {
		return TestcaseDetails{}, err
	}
	return detailsFromResult(res, in, out), nil
}

func exeName(h ExecutableHandle) string {
	if h == nil {
		return ""
	}
	return h.Name()
}

// AnswerSubmissionJudger treats the "submission" as a pre-produced output
// file rather than source code: Compile is a trivial success and
// JudgeTestcase feeds the submitted answer straight to comparison.
type AnswerSubmissionJudger struct {
	baseJudger
	answerFile string
}

// NewAnswerSubmissionJudger constructs a Judger for an answer-submission
// problem, where answerFile is the path to the user's submitted output.
func NewAnswerSubmissionJudger(testData TestData, answerFile string,
	compiler CompilerService, runner RunnerTransport, preview PreviewReader, priority, dataDisplayLimit int,
	tracer tracing.Tracer, logger *zap.Logger) *AnswerSubmissionJudger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}
	return &AnswerSubmissionJudger{
		baseJudger: baseJudger{
			testData: testData, compiler: compiler, runner: runner,
			preview: preview, priority: priority, dataDisplayLimit: dataDisplayLimit, logger: logger, tracer: tracer,
		},
		answerFile: answerFile,
	}
}

func (j *AnswerSubmissionJudger) Compile(ctx context.Context) (CompilationResult, error) {
	return CompilationResult{Success: true}, nil
}

func (j *AnswerSubmissionJudger) CompileWithDiagnostics(ctx context.Context) (CompilationResult, error) {
	return CompilationResult{}, fmt.Errorf("answer-submission problems have no instrumented variant")
}

func (j *AnswerSubmissionJudger) SupportDiagnostics() bool { return false }

func (j *AnswerSubmissionJudger) JudgeTestcase(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	in, out, err := j.preview2(ctx, tc)
	if err != nil {
		return TestcaseDetails{}, err
	}
	j.mu.Lock()
	spjExe := j.spjExe
	j.mu.Unlock()
	payload := TaskPayload{
		TestDataName:      j.testData.Name,
		AnswerData:        j.answerFile,
		SPJExecutableName: exeName(spjExe),
	}
	res, err := j.runner.RunTask(ctx, payload, j.priority, started)
	if err != nil {
		return TestcaseDetails{}, err
	}
	return detailsFromResult(res, in, out), nil
}

// InteractiveJudger pipes the user's program through a second, problem-
// supplied interactor executable compiled from the interactor source handed
// to NewInteractiveJudger.
type InteractiveJudger struct {
	baseJudger
	source          SourceFile
	extras          []AttachedFile
	interactorSrc   SourceFile
	interactorExtra []AttachedFile

	imu          sync.Mutex
	interactorExe ExecutableHandle
}

// NewInteractiveJudger constructs a Judger for an interactive problem.
func NewInteractiveJudger(testData TestData, source SourceFile, extras []AttachedFile,
	interactorSrc SourceFile, interactorExtra []AttachedFile, lang LanguageDescriptor,
	compiler CompilerService, runner RunnerTransport, preview PreviewReader, priority, dataDisplayLimit int,
	tracer tracing.Tracer, logger *zap.Logger) *InteractiveJudger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}
	return &InteractiveJudger{
		baseJudger: baseJudger{
			testData: testData, lang: lang, compiler: compiler, runner: runner,
			preview: preview, priority: priority, dataDisplayLimit: dataDisplayLimit, logger: logger, tracer: tracer,
		},
		source: source, extras: extras,
		interactorSrc: interactorSrc, interactorExtra: interactorExtra,
	}
}

func (j *InteractiveJudger) PreprocessTestData(ctx context.Context) error {
	if err := j.baseJudger.PreprocessTestData(ctx); err != nil {
		return err
	}
	handle, result, err := j.compiler.Compile(ctx, j.interactorSrc, j.interactorExtra, j.priority)
	if err != nil {
		return fmt.Errorf("compile interactor: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("interactor compilation failed: %s", result.Message)
	}
	j.imu.Lock()
	j.interactorExe = handle
	j.imu.Unlock()
	return nil
}

func (j *InteractiveJudger) Compile(ctx context.Context) (CompilationResult, error) {
	start := time.Now()
	handle, result, err := j.compiler.Compile(ctx, j.source, j.extras, j.priority)
	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return CompilationResult{}, err
	}
	if result.Success {
		j.mu.Lock()
		j.userExe = handle
		j.mu.Unlock()
	}
	return result, nil
}

func (j *InteractiveJudger) CompileWithDiagnostics(ctx context.Context) (CompilationResult, error) {
	return j.baseJudger.CompileWithDiagnostics(ctx, j.source, j.extras)
}

func (j *InteractiveJudger) JudgeTestcase(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	j.mu.Lock()
	userExe := j.userExe
	j.mu.Unlock()
	return j.judgeWith(ctx, tc, started, userExe)
}

func (j *InteractiveJudger) JudgeTestcaseDiagnostics(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	j.mu.Lock()
	diagExe := j.diagExe
	j.mu.Unlock()
	if diagExe == nil {
		return TestcaseDetails{}, fmt.Errorf("diagnostics executable not compiled")
	}
	return j.judgeWith(ctx, tc, started, diagExe)
}

func (j *InteractiveJudger) judgeWith(ctx context.Context, tc TestcaseJudge, started StartedFunc, userExe ExecutableHandle) (TestcaseDetails, error) {
	ctx, span := j.tracer.StartSpan(ctx, "judge.testcase")
	defer j.tracer.EndSpan(span)

	in, out, err := j.preview2(ctx, tc)
	if err != nil {
		return TestcaseDetails{}, err
	}
	j.imu.Lock()
	interactorExe := j.interactorExe
	j.imu.Unlock()
	payload := TaskPayload{
		TestDataName:              j.testData.Name,
		UserExecutableName:        exeName(userExe),
		InteractorExecutableName:  exeName(interactorExe),
	}
	res, err := j.runner.RunTask(ctx, payload, j.priority, started)
	if err != nil {
		return TestcaseDetails{}, err
	}
	return detailsFromResult(res, in, out), nil
}

var (
	_ Judger             = (*StandardJudger)(nil)
	_ Judger             = (*AnswerSubmissionJudger)(nil)
	_ Judger             = (*InteractiveJudger)(nil)
	_ DiagnosticsCapable = (*StandardJudger)(nil)
	_ DiagnosticsCapable = (*InteractiveJudger)(nil)
)
