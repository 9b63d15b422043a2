package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "antopt/internal/aco"
    "antopt/internal/model"
    "antopt/internal/store"
)

// OptimizeHandler handles POST /v1/optimize: creates a run and launches it.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanSubmit() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
    var req model.OptimizeRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateOptimizeRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { _, req.TenantID = s.withTenant(r) }

    problem, err := req.Problem()
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
        return
    }
    base := aco.DefaultParameters()
    if s.Defaults != nil { base = paramsFromConfig(base, s.Defaults) }
    if cfg, err := s.Store.GetOptimizerConfig(r.Context(), req.TenantID); err == nil && cfg != nil {
        base = paramsFromConfig(base, cfg)
    }
    params := req.EngineParameters(base)
    if err := params.Validate(); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
        return
    }
    seed := req.Seed
    if seed == 0 { seed = time.Now().UnixNano() }

    run, err := s.Store.CreateRun(r.Context(), model.RunOut{TenantID: req.TenantID, Name: req.Name, Seed: seed})
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
        return
    }
    s.Runs.Launch(run, problem, params)
    writeJSON(w, http.StatusAccepted, run)
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListRuns(r.Context(), tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id} plus the /cancel, /progress,
// /snapshots and /events/stream subresources.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/runs/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    _, tenant := s.withTenant(r)

    if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
        s.runEventsSSE(w, r, tenant, id)
        return
    }
    if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "ws" {
        s.runEventsWS(w, r, tenant, id)
        return
    }
    if len(parts) > 1 && parts[1] == "cancel" {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pr := s.getPrincipal(r)
        if !pr.CanSubmit() { writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path); return }
        run, err := s.Store.GetRun(r.Context(), tenant, id)
        if err != nil { writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path); return }
        if !s.Runs.Cancel(id) {
            writeProblem(w, http.StatusConflict, "Run not active", "run already finished or owned by another replica", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "canceling": true})
        return
    }
    if len(parts) > 1 && parts[1] == "progress" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
            writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
            return
        }
        frame := s.Runs.Progress.Latest(tenant, id)
        if frame == nil { frame = map[string]any{"runId": id} }
        writeJSON(w, http.StatusOK, frame)
        return
    }
    if len(parts) > 1 && parts[1] == "snapshots" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        snaps, err := s.Store.ListRunSnapshots(r.Context(), tenant, id)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Run not found", "", r.URL.Path); return }
            writeProblem(w, 500, "List snapshots failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": snaps})
        return
    }

    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    run, err := s.Store.GetRun(r.Context(), tenant, id)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

// runEventsSSE streams run lifecycle and progress events as SSE.
func (s *Server) runEventsSSE(w http.ResponseWriter, r *http.Request, tenant, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
        writeProblem(w, 404, "Run not found", err.Error(), r.URL.Path)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// OptimizerConfigHandler returns the effective optimizer defaults
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    defaults := paramsMap(aco.DefaultParameters())
    for k, v := range s.Defaults { defaults[k] = v }
    // overlay tenant config if present
    p := s.getPrincipal(r)
    cfg, _ := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
    if cfg != nil {
        for k, v := range cfg { defaults[k] = v }
    }
    writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// Admin get/set optimizer tenant config
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/optimizer/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        cfg, _ := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config map[string]any `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := paramsFromConfigValid(body.Config); err != nil { writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        if req.URL == "" || len(req.Events) == 0 { writeProblem(w, 400, "Missing url or events", "", r.URL.Path); return }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
        writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
        return
    }
    w.WriteHeader(204)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: webhook DLQ list and requeue
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodGet {
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
        return
    }
    if strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-dlq/") && strings.HasSuffix(r.URL.Path, "/requeue") && r.Method == http.MethodPost {
        id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq/"), "/requeue")
        if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, id); err != nil {
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
            writeProblem(w, 500, "Requeue failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, 202, map[string]int{"accepted": 1})
        return
    }
    writeProblem(w, 404, "Not Found", "", r.URL.Path)
}

// Admin: per-run engine metrics from the in-memory history, falling back to
// the persisted run row when the history has rotated.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/run-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    runID := r.URL.Query().Get("runId")
    items := s.Runs.History.List(p.Tenant, runID)
    if len(items) == 0 && runID != "" {
        if run, err := s.Store.GetRun(r.Context(), p.Tenant, runID); err == nil && run.Metrics != nil {
            items = append(items, runMetricsEntry{RunID: run.ID, Status: run.Status, RecordedAt: run.FinishedAt, Metrics: run.Metrics})
        }
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Admin metrics: run counts by status
func (s *Server) RunStatsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/runs/stats" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    stats, err := s.Store.RunStats(r.Context(), p.Tenant)
    if err != nil { writeProblem(w, 500, "Stats failed", err.Error(), r.URL.Path); return }
    stats["activeOnReplica"] = s.Runs.ActiveCount()
    writeJSON(w, 200, stats)
}

// paramsMap exposes engine parameters as a JSON-friendly config map.
func paramsMap(p aco.Parameters) map[string]any {
    return map[string]any{
        "colonySize":           p.ColonySize,
        "maxIterations":        p.MaxIterations,
        "maxTimeMinutes":       p.MaxTimeMinutes,
        "convergenceThreshold": p.ConvergenceThreshold,
        "alpha":                p.Alpha,
        "beta":                 p.Beta,
        "rho":                  p.Rho,
        "q0":                   p.Q0,
        "pheromoneInit":        p.PheromoneInit,
        "pheromoneMin":         p.PheromoneMin,
        "pheromoneMax":         p.PheromoneMax,
        "adaptiveRho":          p.AdaptiveRho,
        "adaptiveAlpha":        p.AdaptiveAlpha,
        "adaptiveBeta":         p.AdaptiveBeta,
        "localSearch":          p.LocalSearch,
        "elitism":              p.Elitism,
        "elitismRate":          p.ElitismRate,
    }
}

// paramsFromConfig overlays a stored tenant config onto base. Unknown keys
// are ignored; JSON numbers arrive as float64.
func paramsFromConfig(base aco.Parameters, cfg map[string]any) aco.Parameters {
    num := func(k string, dst *float64) {
        if v, ok := cfg[k].(float64); ok { *dst = v }
    }
    intv := func(k string, dst *int) {
        if v, ok := cfg[k].(float64); ok { *dst = int(v) }
    }
    boolv := func(k string, dst *bool) {
        if v, ok := cfg[k].(bool); ok { *dst = v }
    }
    intv("colonySize", &base.ColonySize)
    intv("maxIterations", &base.MaxIterations)
    num("maxTimeMinutes", &base.MaxTimeMinutes)
    num("convergenceThreshold", &base.ConvergenceThreshold)
    num("alpha", &base.Alpha)
    num("beta", &base.Beta)
    num("rho", &base.Rho)
    num("q0", &base.Q0)
    num("pheromoneInit", &base.PheromoneInit)
    num("pheromoneMin", &base.PheromoneMin)
    num("pheromoneMax", &base.PheromoneMax)
    boolv("adaptiveRho", &base.AdaptiveRho)
    boolv("adaptiveAlpha", &base.AdaptiveAlpha)
    boolv("adaptiveBeta", &base.AdaptiveBeta)
    boolv("localSearch", &base.LocalSearch)
    boolv("elitism", &base.Elitism)
    num("elitismRate", &base.ElitismRate)
    return base
}

// paramsFromConfigValid rejects configs that would produce unusable engine
// parameters once overlaid on the defaults.
func paramsFromConfigValid(cfg map[string]any) error {
    return paramsFromConfig(aco.DefaultParameters(), cfg).Validate()
}
