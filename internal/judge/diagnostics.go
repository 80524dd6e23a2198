// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// DiagnosticsConfig mirrors the Diagnostics.* keys (§6): whether the
// diagnostics driver runs at all, and the eligibility ceilings it applies
// to a candidate failed case.
type DiagnosticsConfig struct {
	Enabled bool
	// MaxTimeRatio/MaxTime bound eligible case time: min(ratio*limitMs, MaxTime).
	MaxTimeRatio float64
	MaxTime      int64
	// MaxMemoryRatio/MaxMemoryMiB bound eligible case memory: the
	// configured ceilings are in MiB, but recorded case memory is in KiB,
	// so the comparison converts MiB to KiB before comparing.
	MaxMemoryRatio float64
	MaxMemoryMiB   int64
}

// RunDiagnostics implements §4.F: after the main judge run, pick the first
// eligible failed case in declared order and re-judge it against an
// instrumented compile, attaching any captured stderr to that case's
// Diagnostics field. Every failure mode here is logged at warning level and
// swallowed; diagnostics never affects the primary verdict.
func (r *Run) RunDiagnostics(ctx context.Context, cfg DiagnosticsConfig, timeLimitMs, memoryLimitMiB int64) {
	if !cfg.Enabled || !r.judger.SupportDiagnostics() {
		return
	}
	dj, ok := r.judger.(DiagnosticsCapable)
	if !ok {
		return
	}

	ctx, span := r.tracer.StartSpan(ctx, "judge.diagnostics")
	defer r.tracer.EndSpan(span)

	maxTime := math.Min(cfg.MaxTimeRatio*float64(timeLimitMs), float64(cfg.MaxTime))
	maxMemoryKiB := math.Min(cfg.MaxMemoryRatio*float64(memoryLimitMiB)*1024, float64(cfg.MaxMemoryMiB)*1024)

	subIdx, caseIdx, ok := r.findDiagnosticsCandidate(maxTime, maxMemoryKiB)
	if !ok {
		return
	}
	tc := r.testData.Subtasks[subIdx].Cases[caseIdx]

	compileResult, err := dj.CompileWithDiagnostics(ctx)
	if err != nil {
		r.logger.Warn("diagnostics compile errored", zap.Error(err))
		return
	}
	if !compileResult.Success {
		r.logger.Warn("diagnostics compile failed", zap.String("message", compileResult.Message))
		return
	}

	details, err := dj.JudgeTestcaseDiagnostics(ctx, tc, func() {})
	if err != nil {
		r.logger.Warn("diagnostics rejudge failed", zap.String("case", tc.Name), zap.Error(err))
		return
	}

	r.attachDiagnostics(subIdx, caseIdx, details.UserError)
}

// findDiagnosticsCandidate walks subtasks and cases in declared order
// (not topoOrder — eligibility scanning is defined over the problem's
// declared layout) looking for the first Done case whose recorded verdict
// is WrongAnswer or RuntimeError and whose time/memory fall within the
// configured ceilings.
func (r *Run) findDiagnosticsCandidate(maxTime, maxMemoryKiB float64) (subIdx, caseIdx int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for si, sr := range r.results {
		for ci, cr := range sr.Cases {
			if cr.Result == nil {
				continue
			}
			t := cr.Result.Type
			if t != WrongAnswer && t != RuntimeError {
				continue
			}
			if float64(cr.Result.Time) > maxTime || float64(cr.Result.Memory) > maxMemoryKiB {
				continue
			}
			return si, ci, true
		}
	}
	return 0, 0, false
}

// attachDiagnostics stamps the original case's Diagnostics field and issues
// one final reportProgress, per §4.F.
func (r *Run) attachDiagnostics(subIdx, caseIdx int, diagnostics string) {
	r.mu.Lock()
	cr := r.results[subIdx].Cases[caseIdx]
	if cr.Result != nil {
		updated := *cr.Result
		updated.Diagnostics = diagnostics
		cr.Result = &updated
		r.results[subIdx].Cases[caseIdx] = cr
	}
	snap := JudgeResult{Subtasks: append([]SubtaskResult(nil), r.results...)}.Clone()
	r.mu.Unlock()

	r.report(snap)
}
