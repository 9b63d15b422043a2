// Package aco implements a pheromone-guided ant colony optimizer for
// constrained multi-objective assignment and scheduling problems.
package aco

import (
	"fmt"
	"math"
)

// VariableID identifies a decision variable within a problem.
type VariableID string

// ConstraintID identifies a constraint within a problem.
type ConstraintID string

// ObjectiveID identifies an objective within a problem.
type ObjectiveID string

type VariableType string

const (
	Continuous VariableType = "continuous"
	Discrete   VariableType = "discrete"
	Binary     VariableType = "binary"
	Integer    VariableType = "integer"
)

type ConstraintType string

const (
	Equality   ConstraintType = "equality"
	Inequality ConstraintType = "inequality"
	Bound      ConstraintType = "bound"
	Logical    ConstraintType = "logical"
)

type ObjectiveType string

const (
	Minimize ObjectiveType = "minimize"
	Maximize ObjectiveType = "maximize"
)

// Domain bounds a variable's values. Step applies to discrete variables only.
type Domain struct {
	Min  float64
	Max  float64
	Step float64
}

func (d Domain) width() float64 { return d.Max - d.Min }

func (d Domain) mid() float64 { return (d.Min + d.Max) / 2 }

func (d Domain) clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Variable is one decision dimension. Immutable once a run starts.
type Variable struct {
	ID     VariableID
	Type   VariableType
	Domain Domain
	Weight float64
}

// Constraint is evaluated as a weighted sum over the candidate position and
// compared against Bound. Weight multiplies the infeasibility penalty.
type Constraint struct {
	ID     ConstraintID
	Type   ConstraintType
	Bound  float64
	Weight float64
}

// Objective contributes to fitness scaled by Weight and Priority (1-10).
type Objective struct {
	ID       ObjectiveID
	Type     ObjectiveType
	Weight   float64
	Priority int
}

// Problem is the full model handed to Solve. The engine performs no I/O on it.
type Problem struct {
	Variables   []Variable
	Constraints []Constraint
	Objectives  []Objective
}

// Validate fails fast on configuration errors so the loop never starts on a
// degenerate model.
func (p Problem) Validate() error {
	if len(p.Variables) == 0 {
		return fmt.Errorf("problem has no variables")
	}
	if len(p.Objectives) == 0 {
		return fmt.Errorf("problem has no objectives")
	}
	for _, v := range p.Variables {
		if v.Domain.Max < v.Domain.Min {
			return fmt.Errorf("variable %s: inverted domain [%g,%g]", v.ID, v.Domain.Min, v.Domain.Max)
		}
		if v.Type == Discrete && v.Domain.Step < 0 {
			return fmt.Errorf("variable %s: negative step %g", v.ID, v.Domain.Step)
		}
	}
	for _, o := range p.Objectives {
		if o.Priority < 1 || o.Priority > 10 {
			return fmt.Errorf("objective %s: priority %d outside 1..10", o.ID, o.Priority)
		}
	}
	return nil
}

// Parameters controls the colony. Mutable during a run only by the adaptive
// controller; callers should start from DefaultParameters.
type Parameters struct {
	ColonySize           int
	MaxIterations        int
	MaxTimeMinutes       float64
	ConvergenceThreshold float64
	Alpha                float64 // pheromone weight
	Beta                 float64 // heuristic weight
	Rho                  float64 // evaporation rate
	Q0                   float64 // exploitation threshold
	PheromoneInit        float64
	PheromoneMin         float64
	PheromoneMax         float64
	AdaptiveRho          bool
	AdaptiveAlpha        bool
	AdaptiveBeta         bool
	LocalSearch          bool
	Elitism              bool
	ElitismRate          float64
}

// DefaultParameters returns the baseline tuning used when the caller leaves
// parameters unset.
func DefaultParameters() Parameters {
	return Parameters{
		ColonySize:           30,
		MaxIterations:        200,
		MaxTimeMinutes:       5,
		ConvergenceThreshold: 0.95,
		Alpha:                1.0,
		Beta:                 2.0,
		Rho:                  0.3,
		Q0:                   0.9,
		PheromoneInit:        1.0,
		PheromoneMin:         0.01,
		PheromoneMax:         10.0,
		AdaptiveRho:          true,
		AdaptiveAlpha:        true,
		AdaptiveBeta:         true,
		LocalSearch:          true,
		Elitism:              true,
		ElitismRate:          0.1,
	}
}

// Validate rejects parameter sets the loop cannot run with.
func (p Parameters) Validate() error {
	if p.ColonySize <= 0 {
		return fmt.Errorf("colony size must be positive, got %d", p.ColonySize)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", p.MaxIterations)
	}
	if p.Rho < 0 || p.Rho > 1 {
		return fmt.Errorf("rho must be in [0,1], got %g", p.Rho)
	}
	if p.Q0 < 0 || p.Q0 > 1 {
		return fmt.Errorf("q0 must be in [0,1], got %g", p.Q0)
	}
	if p.PheromoneMin > p.PheromoneMax {
		return fmt.Errorf("pheromone bounds inverted: [%g,%g]", p.PheromoneMin, p.PheromoneMax)
	}
	if p.Elitism && (p.ElitismRate <= 0 || p.ElitismRate > 1) {
		return fmt.Errorf("elitism rate must be in (0,1], got %g", p.ElitismRate)
	}
	return nil
}

// finite reports whether v is a usable number.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
