package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func classroom() Input {
	return Input{
		Students: []string{"Angela", "Bobby", "Char", "Dane", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy"},
		Friends: []Pair{
			{"Angela", "Bobby"},
			{"Char", "Dane"},
			{"Eve", "Frank"},
		},
		Flagged: []Pair{
			{"Grace", "Heidi"},
			{"Ivan", "Judy"},
		},
		Rows: 3,
		Cols: 4,
	}
}

func TestAdjacentSymmetric(t *testing.T) {
	for i := range 12 {
		assert.False(t, Adjacent(4, i, i), "seat %d next to itself", i)
		for j := range 12 {
			assert.Equal(t, Adjacent(4, i, j), Adjacent(4, j, i), "seats %d and %d", i, j)
		}
	}
}

func TestAdjacentCorner(t *testing.T) {
	for _, j := range []int{1, 4, 5} {
		assert.True(t, Adjacent(4, 0, j), "seat %d", j)
	}
	for _, j := range []int{2, 3, 6, 8, 11} {
		assert.False(t, Adjacent(4, 0, j), "seat %d", j)
	}
	// end of row 0 and start of row 1 are far apart
	assert.False(t, Adjacent(4, 3, 4))
	assert.Equal(t, []int{1, 4, 5}, Neighbors(3, 4, 0))
	assert.Equal(t, []int{0, 1, 2, 4, 6, 8, 9, 10}, Neighbors(3, 4, 5))
}

func TestRandomOrderIsPermutation(t *testing.T) {
	in := classroom()
	o, err := New(in, WithSeed(3))
	require.NoError(t, err)

	first := o.randomOrder()
	second := o.randomOrder()
	assert.ElementsMatch(t, in.Students, first)
	assert.ElementsMatch(t, in.Students, second)
	assert.NotEqual(t, first, second)

	again, err := New(in, WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, first, again.randomOrder())
	assert.Equal(t, second, again.randomOrder())
}

func TestCountViolationsPairOrder(t *testing.T) {
	seating := []string{"A", "B", "C", "D"}
	base := Input{Students: seating, Rows: 2, Cols: 2}

	ab := base
	ab.Flagged = []Pair{{"A", "B"}}
	ba := base
	ba.Flagged = []Pair{{"B", "A"}}

	o1, err := New(ab, WithSeed(1))
	require.NoError(t, err)
	o2, err := New(ba, WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, 1, o1.CountViolations(seating))
	assert.Equal(t, o1.CountViolations(seating), o2.CountViolations(seating))
}

func TestScoringIgnoresDistantPairs(t *testing.T) {
	in := Input{
		Students: []string{"A", "B", "C"},
		Friends:  []Pair{{"C", "A"}},
		Flagged:  []Pair{{"A", "C"}, {"A", "Nobody"}},
		Rows:     1,
		Cols:     3,
	}
	o, err := New(in, WithSeed(1))
	require.NoError(t, err)

	assert.Equal(t, 0, o.CountViolations([]string{"A", "B", "C"}))
	assert.Equal(t, 0, o.FriendScore([]string{"A", "B", "C"}))
	assert.Equal(t, 1, o.CountViolations([]string{"A", "C", "B"}))
	assert.Equal(t, 1, o.FriendScore([]string{"B", "C", "A"}))
}

func TestGenerateSeatingDeterministic(t *testing.T) {
	a, err := New(classroom(), WithSeed(42))
	require.NoError(t, err)
	b, err := New(classroom(), WithSeed(42))
	require.NoError(t, err)

	assert.Equal(t, a.GenerateSeating(DefaultMaxAttempts), b.GenerateSeating(DefaultMaxAttempts))
}

func TestGenerateSeatingFindsZeroViolations(t *testing.T) {
	o, err := New(classroom(), WithSeed(7))
	require.NoError(t, err)

	sol := o.GenerateSeating(DefaultMaxAttempts)
	assert.False(t, sol.Fallback)
	assert.Zero(t, sol.Violations)
	assert.Equal(t, sol.Violations, o.CountViolations(sol.Seating))
	assert.Equal(t, sol.FriendScore, o.FriendScore(sol.Seating))
	assert.ElementsMatch(t, classroom().Students, sol.Seating)
	assert.GreaterOrEqual(t, sol.Seed, int64(0))
}

func TestGenerateSeatingFallback(t *testing.T) {
	in := Input{
		Students: []string{"A", "B"},
		Flagged:  []Pair{{"B", "A"}},
		Rows:     1,
		Cols:     2,
	}
	for _, attempts := range []int{0, 1, 50} {
		t.Run(fmt.Sprint(attempts), func(t *testing.T) {
			o, err := New(in, WithSeed(5))
			require.NoError(t, err)

			sol := o.GenerateSeating(attempts)
			assert.True(t, sol.Fallback)
			assert.Equal(t, 1, sol.Violations)
			assert.Equal(t, -1, sol.FriendScore)
			assert.ElementsMatch(t, in.Students, sol.Seating)
		})
	}
}

func TestGenerateSeatingAcceptsOnlyStrictImprovements(t *testing.T) {
	o, err := New(classroom(), WithSeed(11))
	require.NoError(t, err)

	var accepted []Solution
	o.onAccept = func(s Solution) { accepted = append(accepted, s) }
	sol := o.GenerateSeating(DefaultMaxAttempts)

	require.NotEmpty(t, accepted)
	for i, s := range accepted {
		assert.Zero(t, s.Violations)
		if i > 0 {
			assert.Greater(t, s.FriendScore, accepted[i-1].FriendScore)
		}
	}
	assert.Equal(t, accepted[len(accepted)-1], sol)
}

func TestGenerateSeatingEveryPlacementEqual(t *testing.T) {
	in := Input{
		Students: []string{"A", "B", "C", "D"},
		Friends:  []Pair{{"A", "B"}},
		Rows:     2,
		Cols:     2,
	}
	o, err := New(in, WithSeed(9))
	require.NoError(t, err)

	var accepted int
	o.onAccept = func(Solution) { accepted++ }
	sol := o.GenerateSeating(20)

	assert.Zero(t, sol.Violations)
	assert.Equal(t, 1, sol.FriendScore)
	// every 2x2 seating scores 1, so only the first attempt is kept
	assert.Equal(t, 1, accepted)
}

func TestGenerateSeatingContextCancelled(t *testing.T) {
	o, err := New(classroom(), WithSeed(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := o.GenerateSeatingContext(ctx, DefaultMaxAttempts)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, sol.Fallback)
	assert.Len(t, sol.Seating, 10)
}

func TestRenderPadsEmptySeats(t *testing.T) {
	o, err := New(classroom(), WithSeed(1))
	require.NoError(t, err)

	seating := classroom().Students
	var buf strings.Builder
	require.NoError(t, o.Render(&buf, seating))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Seating Arrangement:", lines[0])
	assert.Equal(t, fmt.Sprintf("%-15s%-15s%-15s%-15s", "Angela", "Bobby", "Char", "Dane"), lines[1])
	assert.Equal(t, "Ivan           Judy           "+strings.Repeat(" ", 30), lines[3])
	for _, l := range lines[1:] {
		assert.Len(t, l, 60)
	}
}

func TestRenderTruncatesOverflow(t *testing.T) {
	o := NewUnchecked(Input{Students: []string{"A", "B", "C"}, Rows: 1, Cols: 2})

	var buf strings.Builder
	require.NoError(t, o.Render(&buf, []string{"A", "B", "C"}))
	assert.Equal(t, "Seating Arrangement:\nA              B              \n", buf.String())
}

func TestNewRejectsInvalidInput(t *testing.T) {
	in := Input{
		Students: []string{"A", "B", "A"},
		Flagged:  []Pair{{"B", "B"}},
		Rows:     1,
		Cols:     2,
	}
	o, err := New(in)
	require.Error(t, err)
	assert.Nil(t, o)

	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.True(t, errors.Is(e, ErrInvalidConfiguration), e.Error())
	}

	_, err = New(Input{Students: []string{"A"}, Rows: 0, Cols: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(multierr.Errors(err)[0], ErrInvalidConfiguration))

	assert.NoError(t, Validate(classroom()))
}
