package aco

import "math/rand"

// Metadata tracks a candidate's per-run bookkeeping.
type Metadata struct {
	Iteration        int
	ImprovementCount int
	StagnationCount  int
	ExplorationRate  float64
	ExploitationRate float64
}

// Candidate is one trial solution: a point in the variable space plus the
// metrics derived from it. Candidates are owned by their colony and never
// shared across colonies.
type Candidate struct {
	Position         map[VariableID]float64
	Fitness          float64
	ObjectiveValues  map[ObjectiveID]float64
	ConstraintValues map[ConstraintID]float64
	Feasible         bool
	Violations       []string
	Path             []map[VariableID]float64
	Metadata         Metadata

	rng *rand.Rand
}

// newCandidate samples one value per variable uniformly from its domain and
// leaves evaluation to the caller.
func newCandidate(vars []Variable, rng *rand.Rand) *Candidate {
	c := &Candidate{
		Position: make(map[VariableID]float64, len(vars)),
		rng:      rng,
	}
	for _, v := range vars {
		c.Position[v.ID] = sampleUniform(v, rng)
	}
	c.recordStep()
	return c
}

// sampleUniform draws a value from a variable's domain according to its type.
func sampleUniform(v Variable, rng *rand.Rand) float64 {
	d := v.Domain
	switch v.Type {
	case Binary:
		return float64(rng.Intn(2))
	case Integer:
		lo, hi := int(d.Min), int(d.Max)
		if hi <= lo {
			return float64(lo)
		}
		return float64(lo + rng.Intn(hi-lo+1))
	case Discrete:
		step := d.Step
		if step <= 0 {
			step = 1
		}
		n := int(d.width()/step) + 1
		return d.Min + float64(rng.Intn(n))*step
	default: // continuous
		return d.Min + rng.Float64()*d.width()
	}
}

// recordStep appends a snapshot of the current position to the path.
func (c *Candidate) recordStep() {
	snap := make(map[VariableID]float64, len(c.Position))
	for k, v := range c.Position {
		snap[k] = v
	}
	c.Path = append(c.Path, snap)
}

// Clone returns a deep copy that shares no state with the receiver. The RNG
// is intentionally not carried over: a clone is a value, not a live ant.
func (c *Candidate) Clone() *Candidate {
	out := &Candidate{
		Fitness:  c.Fitness,
		Feasible: c.Feasible,
		Metadata: c.Metadata,
	}
	out.Position = make(map[VariableID]float64, len(c.Position))
	for k, v := range c.Position {
		out.Position[k] = v
	}
	if c.ObjectiveValues != nil {
		out.ObjectiveValues = make(map[ObjectiveID]float64, len(c.ObjectiveValues))
		for k, v := range c.ObjectiveValues {
			out.ObjectiveValues[k] = v
		}
	}
	if c.ConstraintValues != nil {
		out.ConstraintValues = make(map[ConstraintID]float64, len(c.ConstraintValues))
		for k, v := range c.ConstraintValues {
			out.ConstraintValues[k] = v
		}
	}
	out.Violations = append([]string(nil), c.Violations...)
	for _, snap := range c.Path {
		cp := make(map[VariableID]float64, len(snap))
		for k, v := range snap {
			cp[k] = v
		}
		out.Path = append(out.Path, cp)
	}
	return out
}

// setPosition replaces the candidate's position with an owned copy and adds a
// path step.
func (c *Candidate) setPosition(pos map[VariableID]float64) {
	next := make(map[VariableID]float64, len(pos))
	for k, v := range pos {
		next[k] = v
	}
	c.Position = next
	c.recordStep()
}
