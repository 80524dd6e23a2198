// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"fmt"
	"sync"
)

// fakeJudger is a test double for Judger driven by a static map of case
// name to scoring rate (or a transport failure), used to exercise the
// orchestrator without a real compiler/runner adapter.
type fakeJudger struct {
	mu    sync.Mutex
	calls map[string]int

	rates       map[string]float64
	fail        map[string]bool
	diagnostics bool
	diagRate    float64
	diagStderr  string
}

func newFakeJudger(rates map[string]float64) *fakeJudger {
	return &fakeJudger{calls: make(map[string]int), rates: rates, fail: make(map[string]bool)}
}

func (f *fakeJudger) PreprocessTestData(ctx context.Context) error { return nil }

func (f *fakeJudger) Compile(ctx context.Context) (CompilationResult, error) {
	return CompilationResult{Success: true}, nil
}

func (f *fakeJudger) CompileWithDiagnostics(ctx context.Context) (CompilationResult, error) {
	return CompilationResult{Success: true}, nil
}

func (f *fakeJudger) SupportDiagnostics() bool { return f.diagnostics }

func (f *fakeJudger) JudgeTestcase(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	started()
	f.mu.Lock()
	f.calls[tc.Name]++
	f.mu.Unlock()

	if f.fail[tc.Name] {
		return TestcaseDetails{}, fmt.Errorf("runner failure for case %s", tc.Name)
	}
	rate := f.rates[tc.Name]
	verdict := Accepted
	if rate == 0 {
		verdict = WrongAnswer
	}
	return TestcaseDetails{Type: verdict, ScoringRate: rate}, nil
}

func (f *fakeJudger) JudgeTestcaseDiagnostics(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error) {
	started()
	return TestcaseDetails{Type: WrongAnswer, ScoringRate: f.diagRate, UserError: f.diagStderr}, nil
}

func (f *fakeJudger) Cleanup(ctx context.Context) error { return nil }

func (f *fakeJudger) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

var (
	_ Judger             = (*fakeJudger)(nil)
	_ DiagnosticsCapable = (*fakeJudger)(nil)
)
