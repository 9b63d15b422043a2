package aco

import (
	"math"
	"math/rand"
	"sort"
)

// stagnation kicks in when best and average fitness sit within this band.
const stagnationBand = 0.01

// stagnationLimit is the number of consecutive stagnant iterations tolerated
// before the colony asks for a restart.
const stagnationLimit = 10

// Colony holds the current population and the aggregate signals the adaptive
// controller and the driver read each iteration.
type Colony struct {
	Candidates []*Candidate
	Best       *Candidate

	AverageFitness float64
	Diversity      float64
	Convergence    float64
	Stagnation     int

	problem Problem
	seed    int64
}

// NewColony builds a colony of size n with per-candidate RNG streams derived
// from the run seed, so construction stays deterministic even when candidates
// are built on parallel workers.
func NewColony(p Problem, n int, seed int64) *Colony {
	c := &Colony{problem: p, seed: seed}
	c.Candidates = make([]*Candidate, n)
	for i := range c.Candidates {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		c.Candidates[i] = newCandidate(p.Variables, rng)
	}
	return c
}

// Reinitialize resamples every position uniformly and clears the stagnation
// counter. The incumbent best survives the restart.
func (c *Colony) Reinitialize(iteration int) {
	for i := range c.Candidates {
		rng := rand.New(rand.NewSource(c.seed + int64(iteration)*7919 + int64(i)))
		fresh := newCandidate(c.problem.Variables, rng)
		fresh.Metadata.Iteration = iteration
		c.Candidates[i] = fresh
	}
	c.Stagnation = 0
}

// Observe recomputes the colony metrics after an iteration's candidates have
// been evaluated, promotes a strictly better best, and advances the
// stagnation counter. Ties keep the incumbent.
func (c *Colony) Observe() {
	improved := false
	for _, cand := range c.Candidates {
		if c.Best == nil || cand.Fitness > c.Best.Fitness {
			c.Best = cand.Clone()
			improved = true
		}
	}
	c.AverageFitness = c.averageFitness()
	c.Diversity = c.diversity()
	c.Convergence = c.convergence()

	if improved {
		c.Stagnation = 0
	} else if c.Best != nil && finite(c.Best.Fitness) && finite(c.AverageFitness) &&
		math.Abs(c.Best.Fitness-c.AverageFitness) < stagnationBand {
		c.Stagnation++
	} else {
		c.Stagnation = 0
	}
}

// Stagnant reports whether the colony has been flat long enough to restart.
func (c *Colony) Stagnant() bool {
	return c.Stagnation >= stagnationLimit
}

// Elites returns the top ceil(rate*n) candidates by fitness, best first.
func (c *Colony) Elites(rate float64) []*Candidate {
	if rate <= 0 || len(c.Candidates) == 0 {
		return nil
	}
	n := int(math.Ceil(rate * float64(len(c.Candidates))))
	if n > len(c.Candidates) {
		n = len(c.Candidates)
	}
	ranked := make([]*Candidate, len(c.Candidates))
	copy(ranked, c.Candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })
	return ranked[:n]
}

func (c *Colony) averageFitness() float64 {
	if len(c.Candidates) == 0 {
		return 0
	}
	sum := 0.0
	for _, cand := range c.Candidates {
		if finite(cand.Fitness) {
			sum += cand.Fitness
		}
	}
	return sum / float64(len(c.Candidates))
}

// diversity is the mean pairwise Euclidean distance between positions. It
// goes to zero as the colony collapses onto one point.
func (c *Colony) diversity() float64 {
	n := len(c.Candidates)
	if n < 2 {
		return 0
	}
	sum, pairs := 0.0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += distance(c.Candidates[i].Position, c.Candidates[j].Position, c.problem.Variables)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// convergence maps fitness variance onto [0,1]: 1 when all candidates agree,
// toward 0 when fitness is spread out relative to its mean.
func (c *Colony) convergence() float64 {
	n := len(c.Candidates)
	if n == 0 {
		return 0
	}
	mean, count := 0.0, 0
	for _, cand := range c.Candidates {
		if finite(cand.Fitness) {
			mean += cand.Fitness
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean /= float64(count)
	variance := 0.0
	for _, cand := range c.Candidates {
		if finite(cand.Fitness) {
			d := cand.Fitness - mean
			variance += d * d
		}
	}
	variance /= float64(count)
	conv := 1.0 - variance/(mean*mean+1.0)
	if conv < 0 {
		return 0
	}
	if conv > 1 {
		return 1
	}
	return conv
}

func distance(a, b map[VariableID]float64, vars []Variable) float64 {
	sum := 0.0
	for _, v := range vars {
		d := a[v.ID] - b[v.ID]
		sum += d * d
	}
	return math.Sqrt(sum)
}
