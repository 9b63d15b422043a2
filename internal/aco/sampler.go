package aco

import (
	"math"
	"math/rand"
)

// Sampler picks the next value of each variable from a bounded neighborhood
// around the current value, weighted by pheromone strength and a generic
// heuristic. One sampler is shared per colony; it reads the pheromone field
// committed by the previous iteration and never writes it.
type Sampler struct {
	problem Problem
	field   *Field
}

func NewSampler(p Problem, field *Field) *Sampler {
	return &Sampler{problem: p, field: field}
}

// NextPosition builds a full next position for a candidate, one variable at a
// time. With probability q0 the arg-max neighbor is taken (exploitation);
// otherwise a roulette draw over the normalized probabilities (exploration).
func (s *Sampler) NextPosition(c *Candidate, params Parameters, rng *rand.Rand) map[VariableID]float64 {
	next := make(map[VariableID]float64, len(s.problem.Variables))
	exploit, explore := 0, 0
	for _, v := range s.problem.Variables {
		values, probs := s.Transitions(v, c.Position[v.ID], params)
		var idx int
		if rng.Float64() < params.Q0 {
			idx = argMax(probs)
			exploit++
		} else {
			idx = roulette(probs, rng)
			explore++
		}
		next[v.ID] = values[idx]
	}
	if total := exploit + explore; total > 0 {
		c.Metadata.ExploitationRate = float64(exploit) / float64(total)
		c.Metadata.ExplorationRate = float64(explore) / float64(total)
	}
	return next
}

// Transitions returns the neighborhood of candidate next-values for one
// variable and the matching selection probabilities, normalized to sum to 1.
// A degenerate (zero or non-finite) desirability vector falls back to a
// uniform choice so construction can always proceed.
func (s *Sampler) Transitions(v Variable, current float64, params Parameters) ([]float64, []float64) {
	values := neighborhood(v, current)
	level := s.field.VariableLevel(v.ID)
	probs := make([]float64, len(values))
	sum := 0.0
	for i, val := range values {
		d := math.Pow(level, params.Alpha) * math.Pow(heuristic(v, val), params.Beta)
		if !finite(d) || d < 0 {
			d = 0
		}
		probs[i] = d
		sum += d
	}
	if sum <= 0 || !finite(sum) {
		uniform := 1.0 / float64(len(values))
		for i := range probs {
			probs[i] = uniform
		}
		return values, probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return values, probs
}

// heuristic biases exploration toward the domain midpoint; it is inversely
// proportional to the value's distance from it. Problem-specific heuristics
// plug in here as a configuration extension.
func heuristic(v Variable, value float64) float64 {
	return 1.0 / (1.0 + math.Abs(value-v.Domain.mid()))
}

// neighborhood generates the type-specific set of candidate next-values,
// clamped to the domain and including the current value.
func neighborhood(v Variable, current float64) []float64 {
	d := v.Domain
	switch v.Type {
	case Binary:
		return []float64{0, 1}
	case Discrete, Integer:
		step := d.Step
		if v.Type == Integer || step <= 0 {
			step = 1
		}
		return spread(d, current, step, 2)
	default: // continuous
		step := d.width() * 0.1
		if step <= 0 {
			return []float64{d.clamp(current)}
		}
		return spread(d, current, step, 5)
	}
}

// spread returns current ± 1..reach steps, clamped and deduplicated, always
// keeping the current value itself.
func spread(d Domain, current, step float64, reach int) []float64 {
	values := []float64{d.clamp(current)}
	seen := map[float64]bool{d.clamp(current): true}
	for i := 1; i <= reach; i++ {
		for _, cand := range []float64{current - float64(i)*step, current + float64(i)*step} {
			cand = d.clamp(cand)
			if !seen[cand] {
				seen[cand] = true
				values = append(values, cand)
			}
		}
	}
	return values
}

func argMax(probs []float64) int {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}

// roulette samples an index proportionally via cumulative probabilities.
func roulette(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			return i
		}
	}
	return len(probs) - 1
}
