// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopoOrder_RespectsEdges(t *testing.T) {
	subtasks := []Subtask{
		{Type: Minimum, Score: 50},
		{Type: Minimum, Score: 100, Dependencies: []int{0}},
		{Type: Minimum, Score: 100, Dependencies: []int{0, 1}},
	}

	order, err := topoOrder(subtasks)
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := make(map[int]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos[0], pos[1])
	assert.Less(t, pos[0], pos[2])
	assert.Less(t, pos[1], pos[2])
}

func TestTopoOrder_StableByIndex(t *testing.T) {
	// Three independent subtasks, no edges: Kahn's queue is seeded in
	// ascending index order, so the result is the identity permutation.
	subtasks := []Subtask{
		{Type: Minimum, Score: 10},
		{Type: Multiple, Score: 10},
		{Type: Summation, Score: 10},
	}
	order, err := topoOrder(subtasks)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestTopoOrder_CycleRejected(t *testing.T) {
	subtasks := []Subtask{
		{Type: Minimum, Score: 50, Dependencies: []int{1}},
		{Type: Minimum, Score: 50, Dependencies: []int{0}},
	}
	order, err := topoOrder(subtasks)
	assert.Nil(t, order)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "loop detected")
}

func TestTopoOrder_DependencyIndexOutOfRange(t *testing.T) {
	subtasks := []Subtask{
		{Type: Minimum, Score: 50, Dependencies: []int{5}},
	}
	_, err := topoOrder(subtasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestTopoOrder_DependentMustBeMinimum(t *testing.T) {
	subtasks := []Subtask{
		{Type: Minimum, Score: 50},
		{Type: Summation, Score: 50, Dependencies: []int{0}},
	}
	_, err := topoOrder(subtasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not Minimum")
}

func TestTopoOrder_DependencyMustBeMinimum(t *testing.T) {
	subtasks := []Subtask{
		{Type: Summation, Score: 50},
		{Type: Minimum, Score: 50, Dependencies: []int{0}},
	}
	_, err := topoOrder(subtasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-Minimum")
}
