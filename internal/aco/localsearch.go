package aco

import "math/rand"

// localSearchProb is the per-candidate chance of running a refinement pass.
const localSearchProb = 0.1

// localSearchSteps caps how many perturbations one refinement pass tries.
const localSearchSteps = 20

// positionEvaluator scores a candidate in place.
type positionEvaluator interface {
	Evaluate(*Candidate)
}

// localSearch is a pure hill climb: it perturbs one randomly chosen variable
// at a time, keeps a move only when it strictly improves fitness, and stops
// at the first rejected move or at the step cap. A rejected move is rolled
// back before returning.
func localSearch(c *Candidate, eval positionEvaluator, vars []Variable, rng *rand.Rand) bool {
	if len(vars) == 0 {
		return false
	}
	improved := false
	for step := 0; step < localSearchSteps; step++ {
		v := vars[rng.Intn(len(vars))]
		prev := c.Position[v.ID]
		next := v.Domain.clamp(perturb(prev, v.Domain, rng))
		if next == prev {
			continue
		}
		before := c.Fitness
		c.Position[v.ID] = next
		eval.Evaluate(c)
		if c.Fitness > before {
			c.recordStep()
			improved = true
			continue
		}
		c.Position[v.ID] = prev
		eval.Evaluate(c)
		break
	}
	return improved
}

// perturb shifts a value by up to ±5% of the domain range, drawn uniformly.
func perturb(value float64, d Domain, rng *rand.Rand) float64 {
	delta := rng.Float64() * 0.5 * d.width() * 0.1
	if rng.Intn(2) == 0 {
		delta = -delta
	}
	return value + delta
}
