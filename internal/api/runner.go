package api

import (
    "context"
    "log"
    "sync"
    "time"

    "antopt/internal/aco"
    "antopt/internal/metrics"
    "antopt/internal/model"
    "antopt/internal/store"
    "antopt/internal/webhooks"
)

// Runner executes optimization runs in the background. One goroutine per run;
// progress frames fan out through the event broker, the final result is
// persisted and announced to webhook subscribers.
type Runner struct {
    store    store.Store
    broker   EventBroker
    pub      *webhooks.Publisher
    Progress *ProgressCache
    History  *RunMetricsHistory

    mu     sync.Mutex
    active map[string]context.CancelFunc // runId -> cancel
}

func NewRunner(s store.Store, b EventBroker, pub *webhooks.Publisher) *Runner {
    return &Runner{store: s, broker: b, pub: pub, Progress: NewProgressCache(), History: NewRunMetricsHistory(), active: map[string]context.CancelFunc{}}
}

// Launch starts the run asynchronously. The run row must already exist in
// the store with status queued.
func (rn *Runner) Launch(run model.RunOut, problem aco.Problem, params aco.Parameters) {
    ctx, cancel := context.WithCancel(context.Background())
    rn.mu.Lock()
    rn.active[run.ID] = cancel
    rn.mu.Unlock()
    go rn.execute(ctx, run, problem, params)
}

// Cancel signals an in-flight run to stop. Returns false when the run is not
// active on this replica.
func (rn *Runner) Cancel(runID string) bool {
    rn.mu.Lock()
    cancel, ok := rn.active[runID]
    rn.mu.Unlock()
    if ok { cancel() }
    return ok
}

// ActiveCount reports how many runs are executing on this replica.
func (rn *Runner) ActiveCount() int {
    rn.mu.Lock()
    defer rn.mu.Unlock()
    return len(rn.active)
}

func (rn *Runner) execute(ctx context.Context, run model.RunOut, problem aco.Problem, params aco.Parameters) {
    defer func() {
        rn.mu.Lock()
        delete(rn.active, run.ID)
        rn.mu.Unlock()
    }()

    run.Status = model.RunRunning
    run.StartedAt = time.Now().UTC().Format(time.RFC3339)
    ictx, icancel := storeCtx()
    _ = rn.store.UpdateRun(ictx, run)
    icancel()
    rn.broker.Publish(run.ID, SSEEvent{Type: "run.started", Data: map[string]any{"runId": run.ID, "ts": run.StartedAt}})

    eng, err := aco.NewEngine(problem, params, run.Seed)
    if err != nil {
        rn.finishFailed(run, err.Error(), 0)
        return
    }
    eng.OnProgress(func(p aco.Progress) {
        data := progressData(run.ID, p)
        rn.Progress.Upsert(run.TenantID, run.ID, data)
        rn.broker.Publish(run.ID, SSEEvent{Type: "run.progress", Data: data})
    })

    start := time.Now()
    res, err := eng.Solve(ctx)
    elapsed := time.Since(start)
    if err != nil {
        rn.finishFailed(run, err.Error(), elapsed)
        return
    }

    // Persistence gets its own deadline, taken only after Solve returns:
    // the solve can run for minutes and would outlive any context created
    // before it started.
    sctx, scancel := storeCtx()
    defer scancel()

    run.Status = model.RunCompleted
    if res.Metrics.StopReason == aco.StopCanceled { run.Status = model.RunCanceled }
    run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
    run.Best = model.NewCandidateOut(res.Best)
    run.Metrics = metricsData(res.Metrics)
    run.Recommendations = res.Recommendations
    if err := rn.store.UpdateRun(sctx, run); err != nil {
        log.Printf("run %s: persist terminal state: %v", run.ID, err)
    }

    if len(res.Metrics.Snapshots) > 0 {
        snaps := make([]map[string]any, 0, len(res.Metrics.Snapshots))
        for _, p := range res.Metrics.Snapshots { snaps = append(snaps, progressData(run.ID, p)) }
        _ = rn.store.SaveRunSnapshots(sctx, run.TenantID, run.ID, snaps)
    }

    rn.History.Record(run.TenantID, run.ID, run.Status, run.Metrics)
    metrics.RunsTotal.WithLabelValues(run.Status, string(res.Metrics.StopReason)).Inc()
    metrics.RunDuration.WithLabelValues(run.Status).Observe(elapsed.Seconds())
    metrics.RunIterations.Observe(float64(res.Metrics.Iterations))

    evtType := "run.completed"
    if run.Status == model.RunCanceled { evtType = "run.canceled" }
    data := map[string]any{
        "runId":      run.ID,
        "status":     run.Status,
        "stopReason": string(res.Metrics.StopReason),
        "iterations": res.Metrics.Iterations,
        "ts":         run.FinishedAt,
    }
    if run.Best != nil {
        data["bestFitness"] = run.Best.Fitness
        data["feasible"] = run.Best.Feasible
    }
    rn.broker.Publish(run.ID, SSEEvent{Type: evtType, Data: data})
    rn.pub.Emit(sctx, run.TenantID, evtType, data)
}

// storeCtx bounds a persistence write. Taken fresh per write phase, never
// before a solve.
func storeCtx() (context.Context, context.CancelFunc) {
    return context.WithTimeout(context.Background(), 30*time.Second)
}

func (rn *Runner) finishFailed(run model.RunOut, msg string, elapsed time.Duration) {
    ctx, cancel := storeCtx()
    defer cancel()
    run.Status = model.RunFailed
    run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
    run.Error = msg
    if err := rn.store.UpdateRun(ctx, run); err != nil {
        log.Printf("run %s: persist terminal state: %v", run.ID, err)
    }
    rn.History.Record(run.TenantID, run.ID, run.Status, map[string]any{"error": msg, "elapsedMs": elapsed.Milliseconds()})
    metrics.RunsTotal.WithLabelValues(model.RunFailed, "error").Inc()
    metrics.RunDuration.WithLabelValues(model.RunFailed).Observe(elapsed.Seconds())
    data := map[string]any{"runId": run.ID, "error": msg, "ts": run.FinishedAt}
    rn.broker.Publish(run.ID, SSEEvent{Type: "run.failed", Data: data})
    rn.pub.Emit(ctx, run.TenantID, "run.failed", data)
}

func progressData(runID string, p aco.Progress) map[string]any {
    return map[string]any{
        "runId":          runID,
        "iteration":      p.Iteration,
        "phase":          string(p.Phase),
        "bestFitness":    p.BestFitness,
        "averageFitness": p.AverageFitness,
        "diversity":      p.Diversity,
        "convergence":    p.Convergence,
        "alpha":          p.Alpha,
        "beta":           p.Beta,
        "rho":            p.Rho,
        "stagnation":     p.Stagnation,
    }
}

func metricsData(m aco.Metrics) map[string]any {
    return map[string]any{
        "iterations":   m.Iterations,
        "improvements": m.Improvements,
        "restarts":     m.Restarts,
        "elapsedMs":    m.Elapsed.Milliseconds(),
        "stopReason":   string(m.StopReason),
        "finalAlpha":   m.FinalAlpha,
        "finalBeta":    m.FinalBeta,
        "finalRho":     m.FinalRho,
    }
}
