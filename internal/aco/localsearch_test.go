package aco

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSearchNeverWorsens(t *testing.T) {
	p := mixedProblem()
	ev := NewEvaluator(p)
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 50; trial++ {
		c := newCandidate(p.Variables, rng)
		ev.Evaluate(c)
		before := c.Fitness
		localSearch(c, ev, p.Variables, rng)
		assert.GreaterOrEqual(t, c.Fitness, before)
	}
}

func TestLocalSearchStaysInDomain(t *testing.T) {
	p := twoVarProblem()
	ev := NewEvaluator(p)
	rng := rand.New(rand.NewSource(3))
	c := newCandidate(p.Variables, rng)
	c.Position["x"] = 10 // at the boundary
	ev.Evaluate(c)

	localSearch(c, ev, p.Variables, rng)

	for _, v := range p.Variables {
		require.GreaterOrEqual(t, c.Position[v.ID], v.Domain.Min)
		require.LessOrEqual(t, c.Position[v.ID], v.Domain.Max)
	}
}

type countingEvaluator struct {
	inner *Evaluator
	calls int
}

func (e *countingEvaluator) Evaluate(c *Candidate) {
	e.calls++
	e.inner.Evaluate(c)
}

func TestLocalSearchStopsAtFirstRejection(t *testing.T) {
	// One maximize variable pinned to its upper bound: every real move goes
	// downhill and must be rejected, so the climb ends after a single
	// evaluate-and-rollback pair instead of burning the whole step cap.
	p := Problem{
		Variables:  []Variable{{ID: "x", Type: Continuous, Domain: Domain{Min: 0, Max: 10}, Weight: 1}},
		Objectives: []Objective{{ID: "gain", Type: Maximize, Weight: 1, Priority: 1}},
	}
	ev := &countingEvaluator{inner: NewEvaluator(p)}
	rng := rand.New(rand.NewSource(7))
	c := newCandidate(p.Variables, rng)
	c.Position["x"] = 10
	ev.inner.Evaluate(c)
	pathLen := len(c.Path)

	improved := localSearch(c, ev, p.Variables, rng)

	assert.False(t, improved)
	assert.Equal(t, pathLen, len(c.Path))
	assert.Equal(t, 10.0, c.Position["x"], "rejected move rolls back")
	assert.LessOrEqual(t, ev.calls, 2, "one rejected move: evaluate plus rollback re-evaluate")
}

func TestLocalSearchRecordsAcceptedMoves(t *testing.T) {
	p := twoVarProblem()
	ev := NewEvaluator(p)
	rng := rand.New(rand.NewSource(5))
	c := newCandidate(p.Variables, rng)
	c.Position["x"] = 9
	c.Position["y"] = 9
	ev.Evaluate(c)
	steps := len(c.Path)

	if localSearch(c, ev, p.Variables, rng) {
		assert.Greater(t, len(c.Path), steps, "accepted moves extend the path")
	} else {
		assert.Equal(t, steps, len(c.Path))
	}
}
