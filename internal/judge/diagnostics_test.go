// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// S7 — diagnostics trigger: a WrongAnswer case within the configured
// ceilings gets an instrumented rerun whose stderr is attached, and the
// original verdict is left unchanged.
func TestRunDiagnostics_S7_AttachesStderrWithoutChangingVerdict(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "c1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 0})
	j.diagnostics = true
	j.diagStderr = "assertion failed at line 12"

	var snapshots []JudgeResult
	report := func(r JudgeResult) { snapshots = append(snapshots, r.Clone()) }

	run, err := NewRun(testData, j, zap.NewNop(), report, nil)
	require.NoError(t, err)

	result, err := run.Judge(context.Background())
	require.NoError(t, err)
	require.Equal(t, WrongAnswer, result.Subtasks[0].Cases[0].Result.Type)

	run.RunDiagnostics(context.Background(), DiagnosticsConfig{
		Enabled:        true,
		MaxTimeRatio:   3,
		MaxTime:        10000,
		MaxMemoryRatio: 2,
		MaxMemoryMiB:   1024,
	}, 1000, 256)

	final := run.snapshot()
	cr := final.Subtasks[0].Cases[0]
	require.NotNil(t, cr.Result)
	assert.Equal(t, WrongAnswer, cr.Result.Type, "diagnostics must never change the primary verdict")
	assert.Equal(t, "assertion failed at line 12", cr.Result.Diagnostics)
}

func TestRunDiagnostics_CandidateOutsideCeilingsIsSkipped(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "c1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 0})
	j.diagnostics = true
	j.diagStderr = "should not appear"

	run, err := NewRun(testData, j, zap.NewNop(), nil, nil)
	require.NoError(t, err)
	_, err = run.Judge(context.Background())
	require.NoError(t, err)

	// Case time/memory default to zero in this fake, so a negative ceiling
	// makes it ineligible.
	run.RunDiagnostics(context.Background(), DiagnosticsConfig{
		Enabled:        true,
		MaxTimeRatio:   -1,
		MaxTime:        -1,
		MaxMemoryRatio: -1,
		MaxMemoryMiB:   -1,
	}, 1000, 256)

	final := run.snapshot()
	assert.Empty(t, final.Subtasks[0].Cases[0].Result.Diagnostics)
}

func TestRunDiagnostics_DisabledIsNoop(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "c1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 0})
	j.diagnostics = true
	j.diagStderr = "should not appear"

	run, err := NewRun(testData, j, zap.NewNop(), nil, nil)
	require.NoError(t, err)
	_, err = run.Judge(context.Background())
	require.NoError(t, err)

	run.RunDiagnostics(context.Background(), DiagnosticsConfig{Enabled: false}, 1000, 256)

	final := run.snapshot()
	assert.Empty(t, final.Subtasks[0].Cases[0].Result.Diagnostics)
}

func TestRunDiagnostics_UnsupportedLanguageIsNoop(t *testing.T) {
	testData := TestData{
		Subtasks: []Subtask{
			{Type: Summation, Score: 100, Cases: []TestcaseJudge{{Name: "c1"}}},
		},
	}
	j := newFakeJudger(map[string]float64{"c1": 0})
	j.diagnostics = false

	run, err := NewRun(testData, j, zap.NewNop(), nil, nil)
	require.NoError(t, err)
	_, err = run.Judge(context.Background())
	require.NoError(t, err)

	run.RunDiagnostics(context.Background(), DiagnosticsConfig{Enabled: true, MaxTime: 10000, MaxMemoryMiB: 1024}, 1000, 256)

	final := run.snapshot()
	assert.Empty(t, final.Subtasks[0].Cases[0].Result.Diagnostics)
}
