package aco

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionsProbabilitiesNormalize(t *testing.T) {
	p := mixedProblem()
	f := NewField(p.Variables, DefaultParameters())
	s := NewSampler(p, f)

	for _, v := range p.Variables {
		values, probs := s.Transitions(v, v.Domain.mid(), DefaultParameters())
		require.Equal(t, len(values), len(probs))
		sum := 0.0
		for _, pr := range probs {
			require.GreaterOrEqual(t, pr, 0.0)
			sum += pr
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "variable %s", v.ID)
	}
}

func TestTransitionsStayInDomain(t *testing.T) {
	p := mixedProblem()
	f := NewField(p.Variables, DefaultParameters())
	s := NewSampler(p, f)

	for _, v := range p.Variables {
		// Start at the edge so half the neighborhood wants to leave the domain.
		values, _ := s.Transitions(v, v.Domain.Max, DefaultParameters())
		for _, val := range values {
			assert.GreaterOrEqual(t, val, v.Domain.Min)
			assert.LessOrEqual(t, val, v.Domain.Max)
		}
	}
}

func TestBinaryNeighborhoodIsBothStates(t *testing.T) {
	v := Variable{ID: "flag", Type: Binary, Domain: Domain{Min: 0, Max: 1}}
	assert.Equal(t, []float64{0, 1}, neighborhood(v, 1))
}

func TestNextPositionFullExploitationIsDeterministic(t *testing.T) {
	p := twoVarProblem()
	params := DefaultParameters()
	params.Q0 = 1.0 // always take the arg-max neighbor

	f1 := NewField(p.Variables, params)
	f2 := NewField(p.Variables, params)
	c1 := newCandidate(p.Variables, rand.New(rand.NewSource(7)))
	c2 := newCandidate(p.Variables, rand.New(rand.NewSource(7)))

	n1 := NewSampler(p, f1).NextPosition(c1, params, c1.rng)
	n2 := NewSampler(p, f2).NextPosition(c2, params, c2.rng)

	assert.Equal(t, n1, n2)
	assert.Equal(t, 1.0, c1.Metadata.ExploitationRate)
	assert.Equal(t, 0.0, c1.Metadata.ExplorationRate)
}

func TestTransitionsUniformFallbackOnFlatField(t *testing.T) {
	p := twoVarProblem()
	params := DefaultParameters()
	params.PheromoneMin = 0
	params.PheromoneInit = 0 // zero desirability everywhere
	f := NewField(p.Variables, params)
	s := NewSampler(p, f)

	values, probs := s.Transitions(p.Variables[0], 5, params)
	uniform := 1.0 / float64(len(values))
	for _, pr := range probs {
		assert.InDelta(t, uniform, pr, 1e-12)
	}
}
