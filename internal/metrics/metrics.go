// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package metrics exposes Prometheus counters/histograms for the judge
// core's orchestrator and subtask runner. The pure score calculator never
// touches these directly; it's a pure function with nothing to instrument.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CasesTotal counts judged cases by terminal status.
	CasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_cases_total",
		Help: "Testcases judged, by terminal status.",
	}, []string{"status"})

	// SubtaskScore observes each subtask's final score as a fraction of its weight.
	SubtaskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "judge_subtask_score",
		Help:    "Final subtask score as a fraction of its weight.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// CompileDuration observes compile() wall time.
	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "judge_compile_duration_seconds",
		Help:    "Wall-clock time spent in Judger.Compile.",
		Buckets: prometheus.DefBuckets,
	})

	// DedupHitsTotal counts testcase evaluations served from the
	// deduplication cache instead of triggering a new runner task.
	DedupHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_dedup_hits_total",
		Help: "Testcase evaluations served from the dedup cache.",
	})
)
