package aco

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTuneRhoRespondsToDiversity(t *testing.T) {
	p := DefaultParameters()
	ctrl := NewController(&p)

	ctrl.Tune(0.05, 0.5) // collapsing
	assert.InDelta(t, 0.33, p.Rho, 1e-9)

	ctrl.Tune(0.7, 0.5) // scattered
	assert.InDelta(t, 0.297, p.Rho, 1e-9)

	// Repeated triggers pin rho at the caps instead of diverging.
	for i := 0; i < 100; i++ {
		ctrl.Tune(0.05, 0.5)
	}
	assert.Equal(t, 0.9, p.Rho)
	for i := 0; i < 100; i++ {
		ctrl.Tune(0.7, 0.5)
	}
	assert.Equal(t, 0.1, p.Rho)
}

func TestTuneAlphaBetaRespondToConvergence(t *testing.T) {
	p := DefaultParameters()
	ctrl := NewController(&p)

	ctrl.Tune(0.3, 0.9) // over-converged: ease pheromone, push heuristic
	assert.InDelta(t, 0.9, p.Alpha, 1e-9)
	assert.InDelta(t, 2.2, p.Beta, 1e-9)

	ctrl.Tune(0.3, 0.1) // too scattered: inverse adjustment
	assert.InDelta(t, 0.99, p.Alpha, 1e-9)
	assert.InDelta(t, 1.98, p.Beta, 1e-9)

	for i := 0; i < 200; i++ {
		ctrl.Tune(0.3, 0.9)
	}
	assert.Equal(t, 0.1, p.Alpha)
	assert.Equal(t, 4.0, p.Beta)
}

func TestTuneDisabledKnobsStayPut(t *testing.T) {
	p := DefaultParameters()
	p.AdaptiveRho = false
	p.AdaptiveAlpha = false
	p.AdaptiveBeta = false
	ctrl := NewController(&p)

	ctrl.Tune(0.01, 0.99)

	assert.Equal(t, DefaultParameters().Rho, p.Rho)
	assert.Equal(t, DefaultParameters().Alpha, p.Alpha)
	assert.Equal(t, DefaultParameters().Beta, p.Beta)
}

func TestTuneMidRangeIsANoop(t *testing.T) {
	p := DefaultParameters()
	ctrl := NewController(&p)
	ctrl.Tune(0.3, 0.5)
	assert.Equal(t, DefaultParameters(), p)
}
