package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seats/solver"
)

func TestReadSeatingDefaults(t *testing.T) {
	c, err := ReadSeating("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSeating, c)

	in := c.Input()
	assert.Len(t, in.Students, 10)
	assert.Len(t, in.Friends, 3)
	assert.Len(t, in.Flagged, 2)
	assert.Equal(t, 3, in.Rows)
	assert.Equal(t, 4, in.Cols)
	assert.Equal(t, 1000, c.MaxAttempts)
	assert.Empty(t, c.Options())
}

func TestReadSeatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seating.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
students: [A, B, C, D]
friends:
  - [A, B]
flagged: []
rows: 2
cols: 2
seed: 17
`), 0o644))

	c, err := ReadSeating(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, c.Students)
	assert.Equal(t, [][2]string{{"A", "B"}}, c.Friends)
	assert.Empty(t, c.Flagged)
	assert.Equal(t, 2, c.Rows)
	assert.Equal(t, 2, c.Cols)
	assert.Equal(t, solver.DefaultMaxAttempts, c.MaxAttempts)
	assert.True(t, c.HasSeed)
	assert.Equal(t, int64(17), c.Seed)
	assert.Len(t, c.Options(), 1)

	o, err := solver.New(c.Input(), c.Options()...)
	require.NoError(t, err)
	sol := o.GenerateSeating(c.MaxAttempts)
	assert.Zero(t, sol.Violations)
	assert.Equal(t, 1, sol.FriendScore)
}

func TestReadSeatingBadPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seating.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flagged": [["A", "B", "C"]]}`), 0o644))

	_, err := ReadSeating(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, solver.ErrInvalidConfiguration))
}

func TestReadSeatingMissingFile(t *testing.T) {
	_, err := ReadSeating(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReadServer(t *testing.T) {
	t.Setenv("PGCONN", "postgres://localhost/seats")
	t.Setenv("CLIENT_ID", "client")
	t.Setenv("CLIENT_SECRET", "secret")
	t.Setenv("ADMINS", "a@example.com, b@example.com,")
	t.Setenv("WORKERS", "2")

	c, err := ReadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.Admins)
	assert.Equal(t, 2, c.Workers)

	t.Setenv("CLIENT_SECRET", "")
	_, err = ReadServer()
	assert.ErrorContains(t, err, "CLIENT_SECRET")
}
