// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import "context"

// TaskPayload is the opaque reference forwarded to the runner (§6). The
// core never inspects its fields; Judger implementations populate it.
type TaskPayload struct {
	TestDataName       string
	InputData          string
	AnswerData         string
	TimeLimitMs        int64
	MemoryLimitKiB     int64
	FileIOInput        string
	FileIOOutput       string
	UserExecutableName string
	SPJExecutableName  string
	// InteractorExecutableName is set only by InteractiveJudger.
	InteractorExecutableName string
}

// TaskResult is what the runner transport delivers for one submitted task.
type TaskResult struct {
	Type       VerdictType
	Time       int64
	Memory     int64
	ScoringRate float64
	UserError   string
	UserOutput  string
	SPJMessage  string
	SystemMessage string
}

// RunnerTransport is the external interface to the task queue (§1, §4.H).
// Implementations must deliver exactly one result or one error, and invoke
// started at most once, before returning.
type RunnerTransport interface {
	RunTask(ctx context.Context, payload TaskPayload, priority int, started StartedFunc) (TaskResult, error)
}

// ExecutableHandle is an opaque reference to a compiled executable.
type ExecutableHandle interface {
	Name() string
}

// CompilerService is the external interface to the compiler (§1, §4.H).
type CompilerService interface {
	Compile(ctx context.Context, source SourceFile, extras []AttachedFile, priority int) (ExecutableHandle, CompilationResult, error)
}

// PreviewReader reads at most limit bytes of a file, or returns "" for a nil
// path (§4.H).
type PreviewReader interface {
	ReadFileLength(ctx context.Context, path *string, limit int) (string, error)
}
