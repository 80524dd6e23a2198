// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runSubtask drives one subtask after its dependencies have settled
// (§4.D/§4.E). It is run as one goroutine per subtask by Run.Judge.
func (r *Run) runSubtask(ctx context.Context, idx int) error {
	st := r.testData.Subtasks[idx]
	for _, dep := range st.Dependencies {
		select {
		case <-r.done[dep]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	clamp, minScore := r.minPropagation(st)
	if clamp && minScore <= 0 {
		r.logger.Info("subtask skipped upfront by dependency min-propagation",
			zap.Int("subtask", idx), zap.Float64("min_score", minScore))
		r.mu.Lock()
		r.results[idx].Score = math.Min(r.results[idx].Score, minScore)
		r.mu.Unlock()
		r.finishSubtask(idx, Skipped)
		return nil
	}

	var anyFailed bool
	if st.Type == Summation {
		anyFailed = r.runSummation(ctx, idx, st)
	} else {
		anyFailed = r.runSequential(ctx, idx, st, clamp, minScore)
	}

	status := Done
	if anyFailed {
		status = Failed
	}
	r.finishSubtask(idx, status)
	return nil
}

// minPropagation computes the dependency-derived score ceiling for a
// Minimum subtask with dependencies (§4.D). Only Minimum subtasks can have
// dependencies (enforced in graph.go), so the clamp never applies to
// Multiple or Summation.
func (r *Run) minPropagation(st Subtask) (clamp bool, minScore float64) {
	if st.Type != Minimum || len(st.Dependencies) == 0 {
		return false, 0
	}
	minRatio := 1.0
	for _, dep := range st.Dependencies {
		if ratio := r.dependencyRatio(dep); ratio < minRatio {
			minRatio = ratio
		}
	}
	return true, minRatio * st.Score
}

// runSequential drives a skippable (Minimum/Multiple) subtask: cases run
// strictly in declared order; the first case whose scoring rate is
// null/NaN/zero sets a local skip flag and every later case is marked
// Skipped without ever being evaluated. A Failed case does not set the
// skip flag, but does poison the subtask score to NaN.
func (r *Run) runSequential(ctx context.Context, idx int, st Subtask, clamp bool, minScore float64) bool {
	n := len(st.Cases)
	ratios := repeatBaseline(st.Type, n)
	anyFailed := false
	skipped := false

	score := func() float64 {
		s := subtaskScore(st.Type, st.Score, ratios, anyFailed)
		if clamp && !anyFailed {
			s = math.Min(s, minScore)
		}
		return s
	}

	for i, tc := range st.Cases {
		if skipped {
			r.applyCase(idx, i, CaseResult{Status: Skipped}, score)
			continue
		}

		details, err := r.judgeOne(ctx, idx, i, tc)
		if err != nil {
			anyFailed = true
			r.applyCase(idx, i, CaseResult{Status: Failed, ErrorMessage: err.Error()}, score)
			continue
		}

		ratios[i] = details.ScoringRate
		r.applyCase(idx, i, CaseResult{Status: Done, Result: &details}, score)

		if isInvalidRatio(details.ScoringRate) {
			skipped = true
		}
	}
	return anyFailed
}

// runSummation drives a Summation subtask: every case launches in parallel,
// no skipping; the mean of ratios scales the subtask score.
func (r *Run) runSummation(ctx context.Context, idx int, st Subtask) bool {
	n := len(st.Cases)
	ratios := repeatBaseline(st.Type, n)
	var anyFailed bool

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range st.Cases {
		i, tc := i, tc
		g.Go(func() error {
			score := func() float64 {
				return subtaskScore(st.Type, st.Score, ratios, anyFailed)
			}

			details, err := r.judgeOne(gctx, idx, i, tc)
			if err != nil {
				r.mu.Lock()
				anyFailed = true
				r.mu.Unlock()
				r.applyCase(idx, i, CaseResult{Status: Failed, ErrorMessage: err.Error()}, score)
				return nil
			}

			r.mu.Lock()
			ratios[i] = details.ScoringRate
			r.mu.Unlock()
			r.applyCase(idx, i, CaseResult{Status: Done, Result: &details}, score)
			return nil
		})
	}
	_ = g.Wait() // per-case errors are domain state (Failed), never a Go error here

	return anyFailed
}

// judgeOne evaluates one testcase through the deduplicator, so that two
// subtasks referencing the same case name by coincidence still trigger only
// one runner task (§4.C).
func (r *Run) judgeOne(ctx context.Context, idx, caseIdx int, tc TestcaseJudge) (TestcaseDetails, error) {
	return r.dedup.evaluate(ctx, tc.Name, func() {
		// applyCase holds r.mu while invoking this closure, so it must read
		// the in-progress score directly rather than re-locking.
		r.applyCase(idx, caseIdx, CaseResult{Status: Running}, func() float64 {
			return r.results[idx].Score
		})
	}, func(ctx context.Context, started StartedFunc) (TestcaseDetails, error) {
		return r.judger.JudgeTestcase(ctx, tc, started)
	})
}
