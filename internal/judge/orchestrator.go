// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oj-judge/judged/internal/metrics"
	"github.com/oj-judge/judged/internal/tracing"
)

// CompilationResult is returned by Judger.Compile / CompileWithDiagnostics.
type CompilationResult struct {
	Success bool
	Message string
}

// Judger is the abstract seam the orchestrator drives (§4.G). Concrete
// implementations live in judger.go: StandardJudger, AnswerSubmissionJudger,
// InteractiveJudger.
type Judger interface {
	PreprocessTestData(ctx context.Context) error
	Compile(ctx context.Context) (CompilationResult, error)
	CompileWithDiagnostics(ctx context.Context) (CompilationResult, error)
	SupportDiagnostics() bool
	JudgeTestcase(ctx context.Context, tc TestcaseJudge, started StartedFunc) (TestcaseDetails, error)
	Cleanup(ctx context.Context) error
}

// Run holds all state for exactly one judge run (§3: "all data structures
// live for exactly one judge run"). Grounded on pkg/evals/judges/orchestrator.go's
// Orchestrator — a Config-struct-with-defaults constructor driving a fan-out
// over a registry of workers, here specialized to one Judger and a subtask
// dependency graph instead of a judge registry.
type Run struct {
	testData TestData
	judger   Judger
	logger   *zap.Logger
	report   ProgressFunc
	tracer   tracing.Tracer

	dedup *dedupGroup

	topoOrder []int

	mu      sync.Mutex
	results []SubtaskResult
	done    []chan struct{}
}

// NewRun constructs the per-run state. report may be nil, in which case
// progress snapshots are simply dropped.
func NewRun(testData TestData, judger Judger, logger *zap.Logger, report ProgressFunc, tracer tracing.Tracer) (*Run, error) {
	if judger == nil {
		return nil, fmt.Errorf("judger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if report == nil {
		report = func(JudgeResult) {}
	}
	if tracer == nil {
		tracer = tracing.NoOpTracer{}
	}

	order, err := topoOrder(testData.Subtasks)
	if err != nil {
		return nil, err
	}

	n := len(testData.Subtasks)
	r := &Run{
		testData: testData,
		judger:   judger,
		logger:   logger,
		report:   report,
		tracer:   tracer,
		dedup:    newDedupGroup(),
		results:  make([]SubtaskResult, n),
		done:     make([]chan struct{}, n),
	}

	for i, st := range testData.Subtasks {
		r.results[i] = SubtaskResult{
			Status: Waiting,
			Score:  combine(st.Type, repeatBaseline(st.Type, len(st.Cases))) * st.Score,
			Cases:  make([]CaseResult, len(st.Cases)),
		}
		r.done[i] = make(chan struct{})
	}
	r.topoOrder = order
	return r, nil
}

func repeatBaseline(mode ScoringMode, n int) []float64 {
	out := make([]float64, n)
	b := baselineRatio(mode)
	for i := range out {
		out[i] = b
	}
	return out
}

// Judge drives every subtask runner honoring the dependency DAG (§4.E),
// joining on golang.org/x/sync/errgroup rather than a raw sync.WaitGroup +
// channel pattern, giving the orchestrator a clean way to propagate a
// context-cancellation-worthy error without conflating it with a subtask's
// own domain failure (a Failed case is not a Go error; only ctx cancellation
// is).
func (r *Run) Judge(ctx context.Context) (JudgeResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range r.topoOrder {
		idx := idx
		g.Go(func() error {
			return r.runSubtask(gctx, idx)
		})
	}
	if err := g.Wait(); err != nil {
		return JudgeResult{}, err
	}
	return r.snapshot(), nil
}

// snapshot clones the current results vector under the run's mutex.
func (r *Run) snapshot() JudgeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return JudgeResult{Subtasks: append([]SubtaskResult(nil), r.results...)}.Clone()
}

// applyCase mutates one case's result and recomputes its subtask's score
// atomically, then ships a full snapshot to the progress callback. recompute
// runs while the lock is held, so it is the only safe place for a subtask
// runner to touch its own local ratio-tracking state that a sibling
// goroutine (Summation's parallel cases) might also be writing.
func (r *Run) applyCase(idx, caseIdx int, cr CaseResult, recompute func() float64) {
	r.mu.Lock()
	r.results[idx].Cases[caseIdx] = cr
	r.results[idx].Score = recompute()
	snap := JudgeResult{Subtasks: append([]SubtaskResult(nil), r.results...)}.Clone()
	r.mu.Unlock()

	if cr.Status.terminal() {
		metrics.CasesTotal.WithLabelValues(cr.Status.String()).Inc()
	}
	r.report(snap)
}

// finishSubtask marks every remaining Waiting case Skipped (used for the
// upfront "minScore <= 0" skip, and as a defensive sweep after a normal
// run), sets the subtask status, and closes its done channel so dependents
// can proceed.
func (r *Run) finishSubtask(idx int, status CaseStatus) {
	r.mu.Lock()
	for i, c := range r.results[idx].Cases {
		if c.Status == Waiting {
			r.results[idx].Cases[i] = CaseResult{Status: Skipped}
		}
	}
	r.results[idx].Status = status
	score := r.results[idx].Score
	snap := JudgeResult{Subtasks: append([]SubtaskResult(nil), r.results...)}.Clone()
	r.mu.Unlock()

	if weight := r.testData.Subtasks[idx].Score; !math.IsNaN(score) && weight > 0 {
		metrics.SubtaskScore.Observe(score / weight)
	}
	r.report(snap)
	close(r.done[idx])
}

// dependencyRatio reads a settled dependency's score ratio. Safe to call
// only after <-r.done[dep], which is the only synchronization point the
// orchestrator offers for "observe only the dependency's final score"
// (§4.E's second ordering guarantee).
func (r *Run) dependencyRatio(dep int) float64 {
	r.mu.Lock()
	score := r.results[dep].Score
	r.mu.Unlock()

	weight := r.testData.Subtasks[dep].Score
	if weight <= 0 {
		return 1
	}
	return score / weight
}
