// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/oj-judge/judged/internal/metrics"
)

// StartedFunc is the callback a caller of judgeTestcase supplies; it fires
// when the underlying evaluation actually begins running.
type StartedFunc func()

// evalFunc performs the actual, uncached evaluation of one testcase.
type evalFunc func(ctx context.Context, started StartedFunc) (TestcaseDetails, error)

type caseOutcome struct {
	details TestcaseDetails
	err     error
}

// dedupGroup ensures a case name is evaluated at most once for the lifetime
// of a judge run (§4.C), regardless of how many subtasks reference it and
// regardless of whether those references are concurrent or far apart in
// time.
//
// golang.org/x/sync/singleflight.Group collapses *concurrent* duplicate
// calls onto one in-flight execution, which is most of what §4.C asks for,
// but it forgets the call the instant it completes — a later, non-
// overlapping reference to the same case name would re-run it. completed
// is the permanent cache that closes that gap: every evaluation's result is
// stashed there before sf.Do returns, and every caller checks it first.
type dedupGroup struct {
	sf singleflight.Group

	mu        sync.Mutex
	completed map[string]caseOutcome
}

func newDedupGroup() *dedupGroup {
	return &dedupGroup{completed: make(map[string]caseOutcome)}
}

// evaluate runs fn for name at most once for the lifetime of the group.
// Only the caller that actually triggers the underlying evaluation (the
// "first subscriber") has its started callback invoked; every other
// subscriber — whether it arrives while the evaluation is still in flight
// or after it has already completed — observes the result directly with no
// second Running transition, per §4.C.
func (g *dedupGroup) evaluate(ctx context.Context, name string, started StartedFunc, fn evalFunc) (TestcaseDetails, error) {
	g.mu.Lock()
	if out, ok := g.completed[name]; ok {
		g.mu.Unlock()
		metrics.DedupHitsTotal.Inc()
		return out.details, out.err
	}
	g.mu.Unlock()

	ran := false
	v, err, _ := g.sf.Do(name, func() (interface{}, error) {
		// A previous call may have completed (and been forgotten by
		// singleflight) between the check above and this one.
		g.mu.Lock()
		if out, ok := g.completed[name]; ok {
			g.mu.Unlock()
			return out.details, out.err
		}
		g.mu.Unlock()

		// Only the goroutine singleflight actually elects to run fn ever
		// reaches this closure, so started() here fires exactly once per
		// case name regardless of how many concurrent subscribers there are.
		ran = true
		details, err := fn(ctx, started)
		out := caseOutcome{details: details, err: err}

		g.mu.Lock()
		g.completed[name] = out
		g.mu.Unlock()

		return details, err
	})

	// Every caller except the one that ran fn was served without triggering
	// an evaluation.
	if !ran {
		metrics.DedupHitsTotal.Inc()
	}
	if err != nil {
		return TestcaseDetails{}, err
	}
	return v.(TestcaseDetails), nil
}
