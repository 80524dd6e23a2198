// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import "fmt"

// ConfigError is a fatal configuration error discovered before any testcase
// runs (§7: "Configuration error ... Aborts the judge run with an
// explanatory message").
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// topoOrder computes a topological order over subtasks' dependency edges
// using Kahn's algorithm, validating the DAG invariants from §3/§4.A along
// the way:
//
//  1. every dependency index is in range,
//  2. a subtask with non-empty dependencies (and every subtask it depends
//     on) must be Minimum,
//  3. the graph has no cycle.
//
// The queue is seeded and drained in ascending subtask index order, so the
// returned order is stable across runs for the same input. The diagnostics
// driver does not use this order; it scans subtasks in declared order.
func topoOrder(subtasks []Subtask) ([]int, error) {
	n := len(subtasks)
	indegree := make([]int, n)
	dependents := make([][]int, n)

	for i, st := range subtasks {
		for _, dep := range st.Dependencies {
			if dep < 0 || dep >= n {
				return nil, configErrorf("subtask %d: dependency index %d out of range [0,%d)", i, dep, n)
			}
			if st.Type != Minimum {
				return nil, configErrorf("subtask %d: has dependencies but is not Minimum", i)
			}
			if subtasks[dep].Type != Minimum {
				return nil, configErrorf("subtask %d: depends on non-Minimum subtask %d", i, dep)
			}
			indegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dep := range dependents[node] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) < n {
		return nil, configErrorf("loop detected in subtask dependency graph")
	}
	return order, nil
}
