// Package solver seats a roster in a rows×cols grid by random restart,
// keeping flagged pairs apart and friends together where it can.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/multierr"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

const DefaultMaxAttempts = 1000

// Pair is an unordered pair of student identifiers.
type Pair struct {
	A string
	B string
}

func (p Pair) normalize() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

type Input struct {
	Students []string
	Friends  []Pair
	Flagged  []Pair
	Rows     int
	Cols     int
}

// Solution is the outcome of one search. FriendScore is -1 when the
// fallback path produced the seating. Seed is a value drawn from the
// generator right after the seating was accepted; reseeding with it does
// not reproduce the seating.
type Solution struct {
	Seating     []string
	Violations  int
	FriendScore int
	Seed        int64
	Fallback    bool
}

type Option func(*Optimizer)

func WithSeed(seed int64) Option {
	return func(o *Optimizer) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(o *Optimizer) {
		o.rng = rng
	}
}

type Optimizer struct {
	rows     int
	cols     int
	students []string
	friends  map[Pair]bool
	flagged  map[Pair]bool
	rng      *rand.Rand

	onAccept func(Solution)
}

func Validate(in Input) error {
	var err error
	if in.Rows <= 0 || in.Cols <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: grid %dx%d must have positive dimensions", ErrInvalidConfiguration, in.Rows, in.Cols))
	} else if in.Rows*in.Cols < len(in.Students) {
		err = multierr.Append(err, fmt.Errorf("%w: grid %dx%d holds %d seats, roster has %d students",
			ErrInvalidConfiguration, in.Rows, in.Cols, in.Rows*in.Cols, len(in.Students)))
	}
	seen := map[string]bool{}
	for _, s := range in.Students {
		if seen[s] {
			err = multierr.Append(err, fmt.Errorf("%w: duplicate student %q", ErrInvalidConfiguration, s))
		}
		seen[s] = true
	}
	for _, p := range slices.Concat(in.Friends, in.Flagged) {
		if p.A == p.B {
			err = multierr.Append(err, fmt.Errorf("%w: pair (%q, %q) names the same student twice", ErrInvalidConfiguration, p.A, p.B))
		}
	}
	return err
}

// New validates in and builds an Optimizer. Pair members are not checked
// against the roster; unknown names never match an adjacency.
func New(in Input, opts ...Option) (*Optimizer, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	return NewUnchecked(in, opts...), nil
}

// NewUnchecked builds an Optimizer without validation. A grid smaller than
// the roster silently truncates rendering.
func NewUnchecked(in Input, opts ...Option) *Optimizer {
	o := &Optimizer{
		rows:     in.Rows,
		cols:     in.Cols,
		students: in.Students,
		friends:  pairSet(in.Friends),
		flagged:  pairSet(in.Flagged),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

func pairSet(pairs []Pair) map[Pair]bool {
	m := make(map[Pair]bool, len(pairs))
	for _, p := range pairs {
		m[p.normalize()] = true
	}
	return m
}

func (o *Optimizer) Rows() int { return o.rows }
func (o *Optimizer) Cols() int { return o.cols }

func (o *Optimizer) randomOrder() []string {
	return shuffle(o.students, o.rng)
}

// shuffle orders students by independent random keys.
func shuffle(students []string, rng *rand.Rand) []string {
	type keyed struct {
		key  int
		name string
	}
	ks := make([]keyed, len(students))
	for i, s := range students {
		ks[i] = keyed{key: rng.Int(), name: s}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})
	seating := make([]string, len(ks))
	for i, k := range ks {
		seating[i] = k.name
	}
	return seating
}

func (o *Optimizer) countAdjacent(seating []string, set map[Pair]bool) int {
	n := 0
	for i := range seating {
		for j := i + 1; j < len(seating); j++ {
			if !Adjacent(o.cols, i, j) {
				continue
			}
			if set[Pair{A: seating[i], B: seating[j]}.normalize()] {
				n++
			}
		}
	}
	return n
}

// CountViolations reports how many flagged pairs sit in adjacent cells.
func (o *Optimizer) CountViolations(seating []string) int {
	return o.countAdjacent(seating, o.flagged)
}

// FriendScore reports how many friend pairs sit in adjacent cells.
func (o *Optimizer) FriendScore(seating []string) int {
	return o.countAdjacent(seating, o.friends)
}

type seatingTracker struct {
	best   *Solution
	accept func(Solution)
}

// beats reports whether s has no violations and strictly improves on the
// incumbent's friend score. Ties keep the incumbent.
func (t *seatingTracker) beats(s Solution) bool {
	if s.Violations != 0 {
		return false
	}
	return t.best == nil || s.FriendScore > t.best.FriendScore
}

func (t *seatingTracker) add(s Solution) {
	t.best = &s
	if t.accept != nil {
		t.accept(s)
	}
}

func (o *Optimizer) GenerateSeating(maxAttempts int) Solution {
	sol, _ := o.GenerateSeatingContext(context.Background(), maxAttempts)
	return sol
}

// GenerateSeatingContext runs up to maxAttempts random restarts. When ctx
// is done the loop stops early and the best seating so far (or the
// fallback) is returned together with ctx.Err().
func (o *Optimizer) GenerateSeatingContext(ctx context.Context, maxAttempts int) (Solution, error) {
	best, err := o.search(ctx, maxAttempts, o.rng, o.onAccept)
	if best != nil {
		return *best, err
	}
	return o.fallback(), err
}

func (o *Optimizer) search(ctx context.Context, maxAttempts int, rng *rand.Rand, accept func(Solution)) (*Solution, error) {
	tracker := &seatingTracker{accept: accept}
	for attempt := range maxAttempts {
		if attempt%64 == 0 {
			if err := ctx.Err(); err != nil {
				return tracker.best, err
			}
		}
		seating := shuffle(o.students, rng)
		cand := Solution{
			Seating:     seating,
			Violations:  o.CountViolations(seating),
			FriendScore: o.FriendScore(seating),
		}
		if !tracker.beats(cand) {
			continue
		}
		cand.Seed = int64(rng.Int31())
		tracker.add(cand)
	}
	return tracker.best, nil
}

func (o *Optimizer) fallback() Solution {
	seating := o.randomOrder()
	return Solution{
		Seating:     seating,
		Violations:  o.CountViolations(seating),
		FriendScore: -1,
		Seed:        int64(o.rng.Int31()),
		Fallback:    true,
	}
}
