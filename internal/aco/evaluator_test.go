package aco

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateMinimizeObjective(t *testing.T) {
	p := twoVarProblem()
	ev := NewEvaluator(p)
	c := newCandidate(p.Variables, rand.New(rand.NewSource(1)))
	c.Position["x"] = 3
	c.Position["y"] = 1

	ev.Evaluate(c)

	// raw = 3*1 + 1*1 = 4; minimize contribution = 1000/(4+1) = 200.
	require.InDelta(t, 4.0, c.ObjectiveValues["cost"], 1e-9)
	require.InDelta(t, 200.0, c.Fitness, 1e-9)
	assert.True(t, c.Feasible)
	assert.Empty(t, c.Violations)
}

func TestEvaluateMaximizeScalesWithWeightAndPriority(t *testing.T) {
	p := Problem{
		Variables:  []Variable{{ID: "v", Type: Continuous, Domain: Domain{Min: 0, Max: 10}, Weight: 1}},
		Objectives: []Objective{{ID: "gain", Type: Maximize, Weight: 2, Priority: 3}},
	}
	ev := NewEvaluator(p)
	c := newCandidate(p.Variables, rand.New(rand.NewSource(1)))
	c.Position["v"] = 5

	ev.Evaluate(c)

	// 5 * 100 * weight 2 * priority 3
	require.InDelta(t, 3000.0, c.Fitness, 1e-9)
}

func TestEvaluateInequalityPenalty(t *testing.T) {
	p := twoVarProblem()
	p.Constraints = []Constraint{{ID: "cap", Type: Inequality, Bound: 5, Weight: 2}}
	ev := NewEvaluator(p)
	c := newCandidate(p.Variables, rand.New(rand.NewSource(1)))
	c.Position["x"] = 6
	c.Position["y"] = 2

	ev.Evaluate(c)

	// raw = 8, bound 5: penalty (8-5)*2*100 = 600 on top of 1000/9.
	require.False(t, c.Feasible)
	require.Contains(t, c.Violations[0], "cap")
	require.InDelta(t, 1000.0/9.0-600.0, c.Fitness, 1e-9)
}

func TestEvaluateEqualityTolerance(t *testing.T) {
	p := twoVarProblem()
	p.Constraints = []Constraint{{ID: "eq", Type: Equality, Bound: 4, Weight: 1}}
	ev := NewEvaluator(p)

	c := newCandidate(p.Variables, rand.New(rand.NewSource(1)))
	c.Position["x"] = 2
	c.Position["y"] = 2.0005
	ev.Evaluate(c)
	assert.True(t, c.Feasible, "within tolerance")

	c.Position["y"] = 2.01
	ev.Evaluate(c)
	assert.False(t, c.Feasible, "outside tolerance")
}

func TestEvaluateBinaryEqualityViolation(t *testing.T) {
	p := Problem{
		Variables:   []Variable{{ID: "flag", Type: Binary, Domain: Domain{Min: 0, Max: 1}, Weight: 1}},
		Constraints: []Constraint{{ID: "must", Type: Equality, Bound: 1, Weight: 1}},
		Objectives:  []Objective{{ID: "o", Type: Maximize, Weight: 1, Priority: 1}},
	}
	ev := NewEvaluator(p)
	c := &Candidate{Position: map[VariableID]float64{"flag": 0}}
	ev.Evaluate(c)

	assert.False(t, c.Feasible)
	require.Len(t, c.Violations, 1)
	assert.Contains(t, c.Violations[0], "must")
}

func TestEvaluateNonFiniteFitness(t *testing.T) {
	p := twoVarProblem()
	ev := NewEvaluator(p)
	c := newCandidate(p.Variables, rand.New(rand.NewSource(1)))
	c.Position["x"] = math.NaN()

	ev.Evaluate(c)

	require.True(t, math.IsInf(c.Fitness, -1))
	assert.False(t, c.Feasible)
	assert.NotEmpty(t, c.Violations)
}
