package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeatingParallelDeterministic(t *testing.T) {
	run := func() Solution {
		o, err := New(classroom(), WithSeed(99))
		require.NoError(t, err)
		sol, err := o.GenerateSeatingParallel(context.Background(), DefaultMaxAttempts, 4)
		require.NoError(t, err)
		return sol
	}

	first := run()
	for range 5 {
		assert.Equal(t, first, run())
	}
	assert.Zero(t, first.Violations)
	assert.False(t, first.Fallback)
}

func TestGenerateSeatingParallelMergeKeepsEarliestTie(t *testing.T) {
	in := Input{
		Students: []string{"A", "B", "C", "D"},
		Friends:  []Pair{{"A", "B"}},
		Rows:     2,
		Cols:     2,
	}
	o, err := New(in, WithSeed(4))
	require.NoError(t, err)

	var accepted []Solution
	o.onAccept = func(s Solution) { accepted = append(accepted, s) }
	sol, err := o.GenerateSeatingParallel(context.Background(), 8, 3)
	require.NoError(t, err)

	// all workers tie on friend score 1; only worker 0's result survives
	require.Len(t, accepted, 1)
	assert.Equal(t, accepted[0], sol)
	assert.Equal(t, 1, sol.FriendScore)
}

func TestGenerateSeatingParallelFallback(t *testing.T) {
	in := Input{
		Students: []string{"A", "B"},
		Flagged:  []Pair{{"A", "B"}},
		Rows:     1,
		Cols:     2,
	}
	o, err := New(in, WithSeed(5))
	require.NoError(t, err)

	sol, err := o.GenerateSeatingParallel(context.Background(), 100, 4)
	require.NoError(t, err)
	assert.True(t, sol.Fallback)
	assert.Equal(t, 1, sol.Violations)
}

func TestGenerateSeatingParallelSingleWorker(t *testing.T) {
	a, err := New(classroom(), WithSeed(13))
	require.NoError(t, err)
	b, err := New(classroom(), WithSeed(13))
	require.NoError(t, err)

	par, err := a.GenerateSeatingParallel(context.Background(), 300, 1)
	require.NoError(t, err)
	assert.Equal(t, b.GenerateSeating(300), par)
}

func TestGenerateSeatingParallelMoreWorkersThanAttempts(t *testing.T) {
	o, err := New(classroom(), WithSeed(21))
	require.NoError(t, err)

	sol, err := o.GenerateSeatingParallel(context.Background(), 2, 8)
	require.NoError(t, err)
	assert.ElementsMatch(t, classroom().Students, sol.Seating)
	assert.Equal(t, sol.Violations, o.CountViolations(sol.Seating))
}
