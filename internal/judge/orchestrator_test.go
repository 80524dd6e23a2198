// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runJudge(t *testing.T, testData TestData, j Judger) JudgeResult {
	t.Helper()

	var mu sync.Mutex
	var snapshots []JudgeResult
	report := func(r JudgeResult) {
		mu.Lock()
		snapshots = append(snapshots, r.Clone())
		mu.Unlock()
	}

	run, err := NewRun(testData, j, zap.NewNop(), report, nil)
	require.NoError(t, err)

	result, err := run.Judge(context.Background())
	require.NoError(t, err)

	assertMonotonic(t, snapshots)
	return result
}

// assertMonotonic checks invariant 6: once a case reaches a terminal
// status in one snapshot, every later snapshot reports the same status.
func assertMonotonic(t *testing.T, snapshots []JudgeResult) {
	t.Helper()
	if len(snapshots) == 0 {
		return
	}
	for si := range snapshots[0].Subtasks {
		for ci := range snapshots[0].Subtasks[si].Cases {
			var last CaseStatus
			seenTerminal := false
			for _, snap := range snapshots {
				cur := snap.Subtasks[si].Cases[ci].Status
				if seenTerminal {
					assert.Equal(t, last, cur, "case (%d,%d) regressed from %s to %s", si, ci, last, cur)
				}
				if cur.terminal() {
					seenTerminal = true
					last = cur
				}
			}
		}
	}
}

// S1 — single subtask, summation, all AC.
func TestJudge_S1_SummationAllAccepted(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{
				Type:  Summation,
				Score: 100,
				Cases: []TestcaseJudge{{Name: "c1"}, {Name: "c2"}, {Name: "c3"}, {Name: "c4"}},
			},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 1, "c2": 1, "c3": 1, "c4": 1})

	result := runJudge(t, testData, j)

	require.Len(t, result.Subtasks, 1)
	st := result.Subtasks[0]
	assert.Equal(t, Done, st.Status)
	assert.InDelta(t, 100, st.Score, 1e-9)
	for _, c := range st.Cases {
		assert.Equal(t, Done, c.Status)
	}
}

// S2 — skip on zero in a Minimum subtask.
func TestJudge_S2_SkipOnZero(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{
				Type:  Minimum,
				Score: 100,
				Cases: []TestcaseJudge{{Name: "c1"}, {Name: "c2"}, {Name: "c3"}},
			},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 1, "c2": 0, "c3": 1})

	result := runJudge(t, testData, j)

	st := result.Subtasks[0]
	require.Len(t, st.Cases, 3)
	assert.Equal(t, Done, st.Cases[0].Status)
	assert.Equal(t, Done, st.Cases[1].Status)
	assert.Equal(t, Skipped, st.Cases[2].Status)
	assert.InDelta(t, 0, st.Score, 1e-9)
	assert.Equal(t, 0, j.callCount("c3"))
}

// S3 — deduplication across subtasks.
func TestJudge_S3_DeduplicationAcrossSubtasks(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "shared"}}},
			{Type: Summation, Score: 50, Cases: []TestcaseJudge{{Name: "shared"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"shared": 1})

	result := runJudge(t, testData, j)

	assert.Equal(t, 1, j.callCount("shared"))
	assert.InDelta(t, 100, result.Subtasks[0].Score, 1e-9)
	assert.InDelta(t, 50, result.Subtasks[1].Score, 1e-9)
}

// S4 — dependency min-propagation clamps the dependent's score.
func TestJudge_S4_DependencyMinPropagation(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Minimum, Score: 50, Cases: []TestcaseJudge{{Name: "a1"}, {Name: "a2"}}},
			{Type: Minimum, Score: 100, Dependencies: []int{0}, Cases: []TestcaseJudge{{Name: "b1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"a1": 1, "a2": 0.4, "b1": 1})

	result := runJudge(t, testData, j)

	assert.InDelta(t, 20, result.Subtasks[0].Score, 1e-9)
	assert.InDelta(t, 40, result.Subtasks[1].Score, 1e-9)
}

// S5 — dependency skip: B never evaluates any case when A's ratio is 0.
func TestJudge_S5_DependencySkip(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Minimum, Score: 50, Cases: []TestcaseJudge{{Name: "a1"}, {Name: "a2"}}},
			{Type: Minimum, Score: 100, Dependencies: []int{0}, Cases: []TestcaseJudge{{Name: "b1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"a1": 1, "a2": 0, "b1": 1})

	result := runJudge(t, testData, j)

	assert.InDelta(t, 0, result.Subtasks[0].Score, 1e-9)
	assert.Equal(t, Skipped, result.Subtasks[1].Status)
	assert.InDelta(t, 0, result.Subtasks[1].Score, 1e-9)
	assert.Equal(t, 0, j.callCount("b1"))
	require.Len(t, result.Subtasks[1].Cases, 1)
	assert.Equal(t, Skipped, result.Subtasks[1].Cases[0].Status)
}

// S6 — cycle rejection aborts before any case runs.
func TestJudge_S6_CycleRejection(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Minimum, Score: 50, Dependencies: []int{1}},
			{Type: Minimum, Score: 50, Dependencies: []int{0}},
		},
	}
	j := newFakeJudger(nil)

	_, err := NewRun(testData, j, zap.NewNop(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop detected")
	assert.Equal(t, 0, len(j.calls))
}

// A runtime/transport failure poisons the subtask score to NaN (invariant 3).
func TestJudge_RunnerFailurePoisonsScore(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "c1"}, {Name: "c2"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 1, "c2": 1})
	j.fail["c2"] = true

	result := runJudge(t, testData, j)

	st := result.Subtasks[0]
	assert.Equal(t, Failed, st.Status)
	assert.True(t, math.IsNaN(st.Score))
	assert.Equal(t, Failed, st.Cases[1].Status)
}
