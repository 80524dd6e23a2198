// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import "math"

// combine applies the scoring mode to a set of per-case ratios, returning
// the mode's aggregate in [0,1] (or 1 for Multiple on an empty slice — see
// DESIGN.md's Open Question decisions; callers are expected never to pass
// an empty slice for Minimum).
func combine(mode ScoringMode, ratios []float64) float64 {
	switch mode {
	case Minimum:
		min := math.Inf(1)
		for _, r := range ratios {
			if r < min {
				min = r
			}
		}
		return min
	case Multiple:
		product := 1.0
		for _, r := range ratios {
			product *= r
		}
		return product
	case Summation:
		if len(ratios) == 0 {
			return 0
		}
		sum := 0.0
		for _, r := range ratios {
			sum += r
		}
		return sum / float64(len(ratios))
	default:
		return math.NaN()
	}
}

// subtaskScore is the final score for a subtask given its mode, full weight,
// per-case ratios, and whether any case failed (transport/runner error,
// §3 invariant 6: a Failed case poisons the subtask score to NaN).
func subtaskScore(mode ScoringMode, weight float64, ratios []float64, anyFailed bool) float64 {
	if anyFailed {
		return math.NaN()
	}
	return combine(mode, ratios) * weight
}

// baselineRatio is the optimistic per-case ratio used before a case has
// reported (§3 invariant 5): 1 for skippable modes, 0 for Summation.
func baselineRatio(mode ScoringMode) float64 {
	if mode.Skippable() {
		return 1
	}
	return 0
}
