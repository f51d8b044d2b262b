package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seats/config"
)

func TestRunPrintsReport(t *testing.T) {
	cfg := config.DefaultSeating
	cfg.Seed, cfg.HasSeed = 1234, true

	var out strings.Builder
	require.NoError(t, run(context.Background(), &out, cfg))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "Using seed: "))
	assert.Equal(t, "Seating Arrangement:", lines[1])
	for _, l := range lines[2:5] {
		assert.Len(t, l, 60)
	}
	assert.True(t, strings.HasSuffix(lines[4], strings.Repeat(" ", 30)))
	assert.Equal(t, "Violations: 0", lines[5])

	var again strings.Builder
	require.NoError(t, run(context.Background(), &again, cfg))
	assert.Equal(t, out.String(), again.String())
}

func TestRunRejectsSmallGrid(t *testing.T) {
	cfg := config.DefaultSeating
	cfg.Rows, cfg.Cols = 2, 2

	var out strings.Builder
	assert.Error(t, run(context.Background(), &out, cfg))
	assert.Empty(t, out.String())
}
