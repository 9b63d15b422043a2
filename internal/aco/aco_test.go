package aco

// Shared fixtures for the package tests.

func twoVarProblem() Problem {
	return Problem{
		Variables: []Variable{
			{ID: "x", Type: Continuous, Domain: Domain{Min: 0, Max: 10}, Weight: 1},
			{ID: "y", Type: Continuous, Domain: Domain{Min: 0, Max: 10}, Weight: 1},
		},
		Objectives: []Objective{
			{ID: "cost", Type: Minimize, Weight: 1, Priority: 1},
		},
	}
}

func mixedProblem() Problem {
	return Problem{
		Variables: []Variable{
			{ID: "load", Type: Continuous, Domain: Domain{Min: 0, Max: 100}, Weight: 1},
			{ID: "trucks", Type: Integer, Domain: Domain{Min: 1, Max: 8}, Weight: 2},
			{ID: "express", Type: Binary, Domain: Domain{Min: 0, Max: 1}, Weight: 5},
			{ID: "shift", Type: Discrete, Domain: Domain{Min: 0, Max: 12, Step: 4}, Weight: 1},
		},
		Constraints: []Constraint{
			{ID: "capacity", Type: Inequality, Bound: 120, Weight: 1},
		},
		Objectives: []Objective{
			{ID: "throughput", Type: Maximize, Weight: 1, Priority: 2},
		},
	}
}

func fastParams() Parameters {
	p := DefaultParameters()
	p.ColonySize = 10
	p.MaxIterations = 40
	p.MaxTimeMinutes = 1
	return p
}
