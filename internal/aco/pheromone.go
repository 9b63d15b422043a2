package aco

// PairKey addresses the pheromone trail between an ordered pair of variables.
type PairKey struct {
	From VariableID
	To   VariableID
}

// Field holds pheromone levels over ordered variable pairs, bounded to
// [min,max] at all times. It is owned exclusively by one colony; all updates
// happen inside the iteration barrier.
type Field struct {
	levels   map[PairKey]float64
	min, max float64
	initial  float64
}

// NewField seeds every ordered pair of distinct variables uniformly.
func NewField(vars []Variable, params Parameters) *Field {
	f := &Field{
		levels:  make(map[PairKey]float64, len(vars)*(len(vars)-1)),
		min:     params.PheromoneMin,
		max:     params.PheromoneMax,
		initial: params.PheromoneInit,
	}
	for _, a := range vars {
		for _, b := range vars {
			if a.ID == b.ID {
				continue
			}
			f.levels[PairKey{a.ID, b.ID}] = f.clamp(params.PheromoneInit)
		}
	}
	return f
}

func (f *Field) clamp(v float64) float64 {
	if v < f.min {
		return f.min
	}
	if v > f.max {
		return f.max
	}
	return v
}

// Level returns the trail strength for an ordered pair.
func (f *Field) Level(from, to VariableID) float64 {
	if v, ok := f.levels[PairKey{from, to}]; ok {
		return v
	}
	return f.clamp(f.initial)
}

// VariableLevel aggregates the outgoing trails of one variable into a single
// desirability input for the transition sampler.
func (f *Field) VariableLevel(id VariableID) float64 {
	sum, n := 0.0, 0
	for k, v := range f.levels {
		if k.From == id {
			sum += v
			n++
		}
	}
	if n == 0 {
		return f.clamp(f.initial)
	}
	return sum / float64(n)
}

// Evaporate decays every trail by rho, re-clamping into bounds.
func (f *Field) Evaporate(rho float64) {
	for k, v := range f.levels {
		f.levels[k] = f.clamp(v * (1 - rho))
	}
}

// Deposit reinforces every ordered pair of distinct variables present in the
// position by amount. Runs after Evaporate within an iteration so fresh
// deposits are not immediately eroded.
func (f *Field) Deposit(position map[VariableID]float64, amount float64) {
	if !finite(amount) {
		return
	}
	for from := range position {
		for to := range position {
			if from == to {
				continue
			}
			k := PairKey{from, to}
			f.levels[k] = f.clamp(f.levels[k] + amount)
		}
	}
}

// Reset pulls every trail back to the initial level, discarding everything
// learned so far. Used on stagnation restarts.
func (f *Field) Reset() {
	for k := range f.levels {
		f.levels[k] = f.clamp(f.initial)
	}
}

// Size returns the number of tracked pairs.
func (f *Field) Size() int { return len(f.levels) }

// Snapshot copies the current levels for reporting.
func (f *Field) Snapshot() map[PairKey]float64 {
	out := make(map[PairKey]float64, len(f.levels))
	for k, v := range f.levels {
		out[k] = v
	}
	return out
}
