package aco

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSeedsOrderedPairs(t *testing.T) {
	p := twoVarProblem()
	f := NewField(p.Variables, DefaultParameters())

	// Two variables give two ordered pairs, both at the initial level.
	require.Equal(t, 2, f.Size())
	assert.Equal(t, 1.0, f.Level("x", "y"))
	assert.Equal(t, 1.0, f.Level("y", "x"))
}

func TestFieldEvaporateThenDeposit(t *testing.T) {
	p := twoVarProblem()
	f := NewField(p.Variables, DefaultParameters())

	f.Evaporate(0.5)
	assert.InDelta(t, 0.5, f.Level("x", "y"), 1e-12)

	f.Deposit(map[VariableID]float64{"x": 1, "y": 2}, 0.002)
	assert.InDelta(t, 0.502, f.Level("x", "y"), 1e-12)
	assert.InDelta(t, 0.502, f.Level("y", "x"), 1e-12)
}

func TestFieldBoundsHold(t *testing.T) {
	p := twoVarProblem()
	params := DefaultParameters()
	params.PheromoneMin = 0.01
	params.PheromoneMax = 10
	f := NewField(p.Variables, params)

	pos := map[VariableID]float64{"x": 1, "y": 1}
	for i := 0; i < 100; i++ {
		f.Deposit(pos, 5)
	}
	assert.Equal(t, 10.0, f.Level("x", "y"), "deposits clamp at the ceiling")

	for i := 0; i < 100; i++ {
		f.Evaporate(0.9)
	}
	assert.Equal(t, 0.01, f.Level("x", "y"), "evaporation clamps at the floor")
}

func TestFieldResetRestoresInitial(t *testing.T) {
	p := twoVarProblem()
	f := NewField(p.Variables, DefaultParameters())
	f.Evaporate(0.5)
	f.Reset()
	assert.Equal(t, 1.0, f.Level("x", "y"))
}

func TestVariableLevelAveragesOutgoingTrails(t *testing.T) {
	p := mixedProblem()
	f := NewField(p.Variables, DefaultParameters())
	f.Deposit(map[VariableID]float64{"load": 1, "trucks": 2}, 1)

	// "load" has three outgoing trails; only load->trucks was reinforced.
	want := (2.0 + 1.0 + 1.0) / 3.0
	assert.InDelta(t, want, f.VariableLevel("load"), 1e-12)
}
