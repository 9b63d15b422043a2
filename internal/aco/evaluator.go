package aco

import (
	"fmt"
	"math"
)

// Evaluator scores candidates against a problem's objectives and constraints.
// It is pure: the same call is used for initialization, construction and
// local search so fitness values stay comparable.
type Evaluator struct {
	problem Problem
}

func NewEvaluator(p Problem) *Evaluator { return &Evaluator{problem: p} }

// Evaluate recomputes fitness, feasibility and per-objective/constraint
// values in place.
func (e *Evaluator) Evaluate(c *Candidate) {
	c.ObjectiveValues = make(map[ObjectiveID]float64, len(e.problem.Objectives))
	c.ConstraintValues = make(map[ConstraintID]float64, len(e.problem.Constraints))
	c.Violations = nil
	c.Feasible = true

	raw := e.weightedSum(c)

	fitness := 0.0
	for _, obj := range e.problem.Objectives {
		c.ObjectiveValues[obj.ID] = raw
		fitness += contribution(obj, raw)
	}
	for _, con := range e.problem.Constraints {
		c.ConstraintValues[con.ID] = raw
		if excess := raw - con.Bound; excess > 0 {
			fitness -= excess * con.Weight * 100
		}
		switch con.Type {
		case Equality:
			if math.Abs(raw-con.Bound) > 0.001 {
				c.Feasible = false
				c.Violations = append(c.Violations, fmt.Sprintf("constraint %s: value %.4f != %.4f", con.ID, raw, con.Bound))
			}
		case Inequality, Bound:
			if raw > con.Bound {
				c.Feasible = false
				c.Violations = append(c.Violations, fmt.Sprintf("constraint %s: value %.4f exceeds bound %.4f", con.ID, raw, con.Bound))
			}
		}
	}

	if !finite(fitness) {
		// A non-finite score must never be selected as best.
		fitness = math.Inf(-1)
		c.Feasible = false
		c.Violations = append(c.Violations, "fitness is not a finite number")
	}
	c.Fitness = fitness
}

// weightedSum is the fixed expression semantics carried over from the source
// system: every objective and constraint evaluates the same weighted sum of
// the position over all variables.
func (e *Evaluator) weightedSum(c *Candidate) float64 {
	total := 0.0
	for _, v := range e.problem.Variables {
		total += c.Position[v.ID] * v.Weight
	}
	return total
}

// contribution converts a raw objective value into a fitness term. Minimize
// objectives reward small magnitudes, maximize objectives reward large raw
// values; both scale by weight and priority.
func contribution(obj Objective, value float64) float64 {
	var base float64
	if obj.Type == Minimize {
		base = 1000 / (math.Abs(value) + 1)
	} else {
		base = value * 100
	}
	return base * obj.Weight * float64(obj.Priority)
}
