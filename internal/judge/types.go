// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package judge implements the judging core: the dependency-aware subtask
// scheduler, the per-testcase deduplicator, score aggregation, and the
// diagnostics rerun policy.
package judge

import (
	"encoding/json"
	"math"
)

// ScoringMode selects how a subtask's per-case ratios combine into a score.
type ScoringMode int

const (
	// Minimum scores a subtask as the weakest case's ratio (skippable).
	Minimum ScoringMode = iota
	// Multiple scores a subtask as the product of its cases' ratios (skippable).
	Multiple
	// Summation scores a subtask as the mean of its cases' ratios (not skippable).
	Summation
)

func (m ScoringMode) String() string {
	switch m {
	case Minimum:
		return "minimum"
	case Multiple:
		return "multiple"
	case Summation:
		return "summation"
	default:
		return "unknown"
	}
}

// Skippable reports whether a zero-ratio case can short-circuit the rest
// of the subtask.
func (m ScoringMode) Skippable() bool {
	return m == Minimum || m == Multiple
}

// MarshalJSON renders the mode by name, matching the wire vocabulary web
// clients consume from the progress fan-out.
func (m ScoringMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// VerdictType is the outcome of judging a single testcase.
type VerdictType int

const (
	Accepted VerdictType = iota
	WrongAnswer
	PartiallyCorrect
	RuntimeError
	TimeLimitExceeded
	MemoryLimitExceeded
	OutputLimitExceeded
	FileError
	JudgementFailed
	InvalidInteraction
)

func (v VerdictType) String() string {
	switch v {
	case Accepted:
		return "Accepted"
	case WrongAnswer:
		return "WrongAnswer"
	case PartiallyCorrect:
		return "PartiallyCorrect"
	case RuntimeError:
		return "RuntimeError"
	case TimeLimitExceeded:
		return "TimeLimitExceeded"
	case MemoryLimitExceeded:
		return "MemoryLimitExceeded"
	case OutputLimitExceeded:
		return "OutputLimitExceeded"
	case FileError:
		return "FileError"
	case JudgementFailed:
		return "JudgementFailed"
	case InvalidInteraction:
		return "InvalidInteraction"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the verdict by name (§3: type ∈ {Accepted, ...}).
func (v VerdictType) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// SourceFile pairs source text with the language it's written in.
type SourceFile struct {
	Source   string `json:"source"`
	Language string `json:"language"`
}

// TestData is the immutable input to one judge run.
type TestData struct {
	Name     string    `json:"name"`
	Subtasks []Subtask `json:"subtasks"`
	// SPJ is the special judge's source, if the problem uses one.
	SPJ *SourceFile `json:"spj,omitempty"`
	// ExtraSourceFiles maps language name to attached helper files.
	ExtraSourceFiles map[string][]AttachedFile `json:"extraSourceFiles,omitempty"`
}

// AttachedFile is a named source file handed to the compiler alongside
// the primary submission source.
type AttachedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Subtask is a named group of testcases sharing a scoring mode and weight.
type Subtask struct {
	Type         ScoringMode     `json:"type"`
	Score        float64         `json:"score"`
	Cases        []TestcaseJudge `json:"cases"`
	Dependencies []int           `json:"dependencies,omitempty"`
}

// TestcaseJudge names one testcase. Name is the deduplication key within
// a single judge run.
type TestcaseJudge struct {
	Name   string  `json:"name"`
	Input  *string `json:"input,omitempty"`
	Output *string `json:"output,omitempty"`
}

// TestcaseDetails is the result of judging one testcase.
type TestcaseDetails struct {
	Type          VerdictType `json:"type"`
	Time          int64       `json:"time"` // milliseconds
	Memory        int64       `json:"memory"` // KiB
	ScoringRate   float64     `json:"scoringRate"`
	UserError     string      `json:"userError,omitempty"`
	UserOutput    string      `json:"userOutput,omitempty"`
	SPJMessage    string      `json:"spjMessage,omitempty"`
	SystemMessage string      `json:"systemMessage,omitempty"`
	Input         FilePreview `json:"input"`
	Output        FilePreview `json:"output"`
	// Diagnostics is filled only by the diagnostics driver (§4.F), never
	// by judgeTestcase itself.
	Diagnostics string `json:"diagnostics,omitempty"`
}

// FilePreview is a truncated preview of an input/output file.
type FilePreview struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CaseStatus is the lifecycle state of one testcase within a judge run.
type CaseStatus int

const (
	Waiting CaseStatus = iota
	Running
	Done
	Skipped
	Failed
)

func (s CaseStatus) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Running:
		return "Running"
	case Done:
		return "Done"
	case Skipped:
		return "Skipped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the status by name.
func (s CaseStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// terminal reports whether a case has reached a status that §4.E's monotonicity
// guarantee forbids leaving (Done, Skipped, Failed never regress).
func (s CaseStatus) terminal() bool {
	return s == Done || s == Skipped || s == Failed
}

// CaseResult is one testcase's status within a SubtaskResult.
type CaseResult struct {
	Status       CaseStatus       `json:"status"`
	Result       *TestcaseDetails `json:"result,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

// SubtaskResult is the aggregate state of one subtask within a JudgeResult.
//
// Score reflects the "optimistic" baseline (§3 invariant 5) until every
// case has reported; callers must not treat an in-progress snapshot's
// Score as final. NaN means the subtask is poisoned by a Failed case.
type SubtaskResult struct {
	Cases  []CaseResult `json:"cases"`
	Status CaseStatus   `json:"status"`
	Score  float64      `json:"score"`
}

// MarshalJSON substitutes null for a NaN score (§3 invariant 6), since
// encoding/json rejects NaN outright.
func (r SubtaskResult) MarshalJSON() ([]byte, error) {
	type alias SubtaskResult
	var score *float64
	if !math.IsNaN(r.Score) {
		score = &r.Score
	}
	return json.Marshal(struct {
		alias
		Score *float64 `json:"score"`
	}{alias: alias(r), Score: score})
}

// JudgeResult is a complete, self-contained snapshot of a judge run.
// Every reportProgress call ships a full JudgeResult; snapshots are never
// diffed against each other by the core.
type JudgeResult struct {
	Subtasks []SubtaskResult `json:"subtasks"`
}

// Clone deep-copies the result so a caller holding a snapshot never
// observes a later in-place mutation of the live result vector.
func (r JudgeResult) Clone() JudgeResult {
	out := JudgeResult{Subtasks: make([]SubtaskResult, len(r.Subtasks))}
	for i, st := range r.Subtasks {
		cp := SubtaskResult{
			Status: st.Status,
			Score:  st.Score,
			Cases:  make([]CaseResult, len(st.Cases)),
		}
		for j, c := range st.Cases {
			cc := c
			if c.Result != nil {
				rc := *c.Result
				cc.Result = &rc
			}
			cp.Cases[j] = cc
		}
		out.Subtasks[i] = cp
	}
	return out
}

// ProgressFunc receives a full snapshot of the judge result. It may itself
// suspend (e.g. to persist or fan the snapshot out to subscribers).
type ProgressFunc func(JudgeResult)

func isInvalidRatio(rate float64) bool {
	return math.IsNaN(rate) || rate == 0
}
