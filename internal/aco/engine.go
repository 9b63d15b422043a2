package aco

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"
)

// Phase is the driver's lifecycle state.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseIterating    Phase = "iterating"
	PhaseConverged    Phase = "converged"
	PhaseStagnating   Phase = "stagnating"
	PhaseRestarting   Phase = "restarting"
	PhaseExhausted    Phase = "exhausted"
	PhaseTerminated   Phase = "terminated"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopConverged StopReason = "converged"
	StopExhausted StopReason = "iteration_limit"
	StopTimeout   StopReason = "time_limit"
	StopCanceled  StopReason = "canceled"
)

// Progress is one per-iteration snapshot delivered to the optional callback
// and retained in the run metrics.
type Progress struct {
	Iteration      int     `json:"iteration"`
	Phase          Phase   `json:"phase"`
	BestFitness    float64 `json:"bestFitness"`
	AverageFitness float64 `json:"averageFitness"`
	Diversity      float64 `json:"diversity"`
	Convergence    float64 `json:"convergence"`
	Alpha          float64 `json:"alpha"`
	Beta           float64 `json:"beta"`
	Rho            float64 `json:"rho"`
	Stagnation     int     `json:"stagnation"`
}

// Metrics aggregates what happened over a whole run.
type Metrics struct {
	Iterations   int           `json:"iterations"`
	Improvements int           `json:"improvements"`
	Restarts     int           `json:"restarts"`
	Elapsed      time.Duration `json:"elapsed"`
	StopReason   StopReason    `json:"stopReason"`
	FinalAlpha   float64       `json:"finalAlpha"`
	FinalBeta    float64       `json:"finalBeta"`
	FinalRho     float64       `json:"finalRho"`
	Snapshots    []Progress    `json:"snapshots,omitempty"`
}

// Result is what a finished run hands back to the caller.
type Result struct {
	Best            *Candidate `json:"best"`
	Metrics         Metrics    `json:"metrics"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// Engine drives one optimization run through its state machine:
// initializing -> iterating -> {converged | stagnating -> restarting |
// exhausted} -> terminated. An Engine is single-use.
type Engine struct {
	problem Problem
	params  Parameters
	seed    int64

	eval    *Evaluator
	field   *Field
	sampler *Sampler
	colony  *Colony
	ctrl    *Controller

	phase      Phase
	onProgress func(Progress)
}

// snapshotEvery controls how often a Progress frame is retained in Metrics.
const snapshotEvery = 10

func NewEngine(p Problem, params Parameters, seed int64) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		problem: p,
		params:  params,
		seed:    seed,
		phase:   PhaseInitializing,
	}
	e.eval = NewEvaluator(p)
	e.field = NewField(p.Variables, params)
	e.sampler = NewSampler(p, e.field)
	e.ctrl = NewController(&e.params)
	return e, nil
}

// OnProgress registers a per-iteration callback. It is invoked synchronously
// from the run loop, so it must not block.
func (e *Engine) OnProgress(fn func(Progress)) { e.onProgress = fn }

// Phase returns the driver's current lifecycle state.
func (e *Engine) Phase() Phase { return e.phase }

// Field exposes the live pheromone state for inspection.
func (e *Engine) Field() *Field { return e.field }

// Solve runs the colony to completion or until ctx is done. A canceled
// context is not an error: the best candidate found so far is returned with
// StopCanceled.
func (e *Engine) Solve(ctx context.Context) (Result, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(e.params.MaxTimeMinutes * float64(time.Minute)))

	e.colony = NewColony(e.problem, e.params.ColonySize, e.seed)
	for _, c := range e.colony.Candidates {
		e.eval.Evaluate(c)
	}
	e.colony.Observe()

	m := Metrics{}
	e.phase = PhaseIterating
	reason := StopExhausted

loop:
	for iter := 1; iter <= e.params.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			reason = StopCanceled
			break loop
		default:
		}
		if time.Now().After(deadline) {
			reason = StopTimeout
			break
		}

		prevBest := math.Inf(-1)
		if e.colony.Best != nil {
			prevBest = e.colony.Best.Fitness
		}

		e.step(iter)
		m.Iterations = iter
		if e.colony.Best != nil && e.colony.Best.Fitness > prevBest {
			m.Improvements++
		}

		prog := e.progress(iter)
		if e.onProgress != nil {
			e.onProgress(prog)
		}
		if iter%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, prog)
		}

		if e.colony.Convergence >= e.params.ConvergenceThreshold {
			e.phase = PhaseConverged
			reason = StopConverged
			break
		}
		if e.colony.Stagnant() {
			e.phase = PhaseStagnating
			e.restart(iter)
			m.Restarts++
			e.phase = PhaseIterating
		}
	}
	if reason == StopExhausted && e.phase == PhaseIterating {
		e.phase = PhaseExhausted
	}
	e.phase = PhaseTerminated

	m.Elapsed = time.Since(start)
	m.StopReason = reason
	m.FinalAlpha = e.params.Alpha
	m.FinalBeta = e.params.Beta
	m.FinalRho = e.params.Rho

	res := Result{Best: e.colony.Best, Metrics: m}
	res.Recommendations = recommendations(res, e.params)
	if res.Best == nil {
		return res, fmt.Errorf("no candidate produced in %d iterations", m.Iterations)
	}
	return res, nil
}

// step runs one full iteration: parallel candidate construction, optional
// local search, then the serialized pheromone update and metric refresh.
func (e *Engine) step(iter int) {
	elite := make(map[*Candidate]bool)
	if e.params.Elitism {
		for _, c := range e.colony.Elites(e.params.ElitismRate) {
			elite[c] = true
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(e.colony.Candidates) {
		workers = len(e.colony.Candidates)
	}
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				e.construct(e.colony.Candidates[i], iter, elite)
			}
		}()
	}
	for i := range e.colony.Candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Pheromone writes and colony metrics are serialized behind the barrier.
	e.field.Evaporate(e.params.Rho)
	for _, c := range e.colony.Candidates {
		// every finite candidate deposits fitness/1000; clamping absorbs
		// negative contributions
		if finite(c.Fitness) {
			e.field.Deposit(c.Position, c.Fitness/1000.0)
		}
	}
	e.colony.Observe()
	if e.params.Elitism && e.colony.Best != nil && finite(e.colony.Best.Fitness) {
		e.field.Deposit(e.colony.Best.Position, e.colony.Best.Fitness/500.0)
	}
	e.ctrl.Tune(e.colony.Diversity, e.colony.Convergence)
}

// construct rebuilds one candidate for this iteration. Elites keep their
// position and are only re-evaluated; everyone else samples a fresh position
// from the pheromone field.
func (e *Engine) construct(c *Candidate, iter int, elite map[*Candidate]bool) {
	c.Metadata.Iteration = iter
	if !elite[c] {
		c.setPosition(e.sampler.NextPosition(c, e.params, c.rng))
	}
	prev := c.Fitness
	e.eval.Evaluate(c)
	if c.Fitness > prev {
		c.Metadata.ImprovementCount++
		c.Metadata.StagnationCount = 0
	} else {
		c.Metadata.StagnationCount++
	}
	if e.params.LocalSearch && c.rng.Float64() < localSearchProb {
		if localSearch(c, e.eval, e.problem.Variables, c.rng) {
			c.Metadata.ImprovementCount++
		}
	}
}

// restart reinitializes the colony after prolonged stagnation. The pheromone
// field is reset to its initial level so the fresh population is not pulled
// straight back into the stale basin.
func (e *Engine) restart(iter int) {
	e.phase = PhaseRestarting
	e.colony.Reinitialize(iter)
	e.field.Reset()
	for _, c := range e.colony.Candidates {
		e.eval.Evaluate(c)
	}
	e.colony.Observe()
}

func (e *Engine) progress(iter int) Progress {
	best := math.Inf(-1)
	if e.colony.Best != nil {
		best = e.colony.Best.Fitness
	}
	return Progress{
		Iteration:      iter,
		Phase:          e.phase,
		BestFitness:    best,
		AverageFitness: e.colony.AverageFitness,
		Diversity:      e.colony.Diversity,
		Convergence:    e.colony.Convergence,
		Alpha:          e.params.Alpha,
		Beta:           e.params.Beta,
		Rho:            e.params.Rho,
		Stagnation:     e.colony.Stagnation,
	}
}

// recommendations turns run outcomes into operator-facing tuning hints.
func recommendations(r Result, p Parameters) []string {
	var out []string
	if r.Metrics.StopReason == StopExhausted && r.Metrics.Improvements > r.Metrics.Iterations/4 {
		out = append(out, "run was still improving at the iteration limit; raise maxIterations")
	}
	if r.Metrics.StopReason == StopTimeout {
		out = append(out, "time budget exhausted before convergence; raise maxTimeMinutes or shrink the colony")
	}
	if r.Metrics.Restarts >= 3 {
		out = append(out, fmt.Sprintf("%d stagnation restarts; consider a larger colony or lower q0 for more exploration", r.Metrics.Restarts))
	}
	if r.Best != nil && !r.Best.Feasible {
		out = append(out, "best candidate violates constraints; relax bounds or increase constraint weights")
	}
	if r.Metrics.StopReason == StopConverged && r.Metrics.Iterations < p.MaxIterations/10 {
		out = append(out, "converged very early; the convergence threshold may be too loose for this problem")
	}
	return out
}

// Solve is the package-level convenience entry point: build an engine, run it
// under ctx, return the result.
func Solve(ctx context.Context, p Problem, params Parameters, seed int64) (Result, error) {
	e, err := NewEngine(p, params, seed)
	if err != nil {
		return Result{}, err
	}
	return e.Solve(ctx)
}
