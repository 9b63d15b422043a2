package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "antopt/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

// smallOptimizeBody is a tiny problem that completes in well under a second.
func smallOptimizeBody() []byte {
    return []byte(`{
        "tenantId": "t_test",
        "name": "unit",
        "seed": 42,
        "variables": [
            {"id": "x", "type": "continuous", "min": 0, "max": 10},
            {"id": "y", "type": "integer", "min": 1, "max": 5}
        ],
        "constraints": [{"id": "cap", "type": "inequality", "bound": 12}],
        "objectives": [{"id": "cost", "type": "minimize"}],
        "parameters": {"colonySize": 8, "maxIterations": 30}
    }`)
}

func startRun(t *testing.T, s *Server, body []byte) model.RunOut {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.OptimizeHandler(rr, req)
    if rr.Code != http.StatusAccepted { t.Fatalf("optimize: %d body=%s", rr.Code, rr.Body.String()) }
    var run model.RunOut
    if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode run: %v", err) }
    if run.ID == "" { t.Fatal("run id missing") }
    return run
}

func waitForStatus(t *testing.T, s *Server, id string, want string, timeout time.Duration) model.RunOut {
    t.Helper()
    deadline := time.Now().Add(timeout)
    for time.Now().Before(deadline) {
        run, err := s.Store.GetRun(context.Background(), "t_test", id)
        if err == nil && run.Status == want { return run }
        time.Sleep(10 * time.Millisecond)
    }
    run, _ := s.Store.GetRun(context.Background(), "t_test", id)
    t.Fatalf("run %s never reached %q (last: %q, err: %q)", id, want, run.Status, run.Error)
    return model.RunOut{}
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestOptimizeCompletesRun(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())
    done := waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)
    if done.Best == nil { t.Fatal("expected best candidate") }
    if len(done.Best.Position) != 2 { t.Fatalf("best position = %+v", done.Best.Position) }
    if done.Metrics["stopReason"] == nil { t.Fatalf("metrics = %+v", done.Metrics) }
    if done.StartedAt == "" || done.FinishedAt == "" { t.Fatal("expected timestamps") }
}

func TestOptimizeValidation(t *testing.T) {
    s := newTestServer(t)
    cases := []string{
        `{"tenantId":"t_test","objectives":[{"id":"cost"}]}`,
        `{"tenantId":"t_test","variables":[{"id":"x","min":0,"max":1}]}`,
        `{"tenantId":"t_test","variables":[{"id":"x","min":5,"max":1}],"objectives":[{"id":"cost"}]}`,
        `{"tenantId":"t_test","variables":[{"id":"x","min":0,"max":1}],"objectives":[{"id":"cost"}],"parameters":{"rho":2}}`,
        `{"tenantId":"t_test","variables":[{"id":"x","min":0,"max":1}],"objectives":[{"id":"cost","priority":11}]}`,
    }
    for i, body := range cases {
        rr := httptest.NewRecorder()
        req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(body)))
        req.Header.Set("Content-Type", "application/json")
        s.OptimizeHandler(rr, req)
        if rr.Code != http.StatusBadRequest { t.Fatalf("case %d: got %d, want 400", i, rr.Code) }
    }
}

func TestRunsListAndGet(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=10", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunsIndexHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("runs index: %d", rr.Code) }
    var idx struct{ Items []model.RunOut `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil { t.Fatalf("decode: %v", err) }
    if len(idx.Items) == 0 { t.Fatal("expected at least one run") }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("run get: %d", rr.Code) }

    // unknown id is a 404
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/runs/does-not-exist", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("missing run: %d", rr.Code) }
}

func TestCancelRun(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{
        "tenantId": "t_test",
        "variables": [{"id": "x", "min": 0, "max": 100}],
        "objectives": [{"id": "cost", "type": "minimize"}],
        "parameters": {"colonySize": 10, "maxIterations": 10000000, "maxTimeMinutes": 10, "convergenceThreshold": 1.1}
    }`)
    run := startRun(t, s, body)

    // give the goroutine a moment to move to running
    time.Sleep(50 * time.Millisecond)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/runs/"+run.ID+"/cancel", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.RunByIDHandler(rr, req)
    if rr.Code != http.StatusAccepted { t.Fatalf("cancel: %d body=%s", rr.Code, rr.Body.String()) }

    done := waitForStatus(t, s, run.ID, model.RunCanceled, 5*time.Second)
    if done.Best == nil { t.Fatal("canceled run should keep best-so-far") }
}

func TestRunProgressEndpoint(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())
    waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID+"/progress", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("progress: %d", rr.Code) }
    var frame map[string]any
    if err := json.Unmarshal(rr.Body.Bytes(), &frame); err != nil { t.Fatalf("decode: %v", err) }
    if frame["runId"] != run.ID { t.Fatalf("frame = %+v", frame) }
}

func TestRunSnapshotsEndpoint(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())
    waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID+"/snapshots", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.RunByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("snapshots: %d", rr.Code) }
    var out struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode: %v", err) }
    if len(out.Items) == 0 { t.Fatal("expected retained snapshots for a 30-iteration run") }
}

func TestOptimizerConfigOverlay(t *testing.T) {
    s := newTestServer(t)

    put := []byte(`{"config":{"alpha":2.5,"colonySize":12}}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/optimizer/config", bytes.NewReader(put))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.AdminOptimizerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("put config: %d body=%s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/optimizer/config", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.OptimizerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get config: %d", rr.Code) }
    var out struct{ Defaults map[string]any `json:"defaults"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode: %v", err) }
    if out.Defaults["alpha"] != 2.5 { t.Fatalf("alpha = %v", out.Defaults["alpha"]) }
    if out.Defaults["colonySize"] != 12.0 { t.Fatalf("colonySize = %v", out.Defaults["colonySize"]) }

    // a config that breaks parameter validation is rejected
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPut, "/v1/admin/optimizer/config", bytes.NewReader([]byte(`{"config":{"rho":3}}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.AdminOptimizerConfigHandler(rr, req)
    if rr.Code != 400 { t.Fatalf("bad config: %d", rr.Code) }
}

func TestRunCompletionEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)

    subBody := []byte(`{"tenantId":"t_test","url":"https://example.invalid/webhook","events":["run.completed"],"secret":"shh"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(subBody))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    run := startRun(t, s, smallOptimizeBody())
    waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)

    // the publisher enqueues synchronously at completion
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        rr = httptest.NewRecorder()
        req = httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
        req.Header.Set("X-Tenant-Id", "t_test")
        req.Header.Set("X-Role", "admin")
        s.WebhookDeliveriesHandler(rr, req)
        if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
        var dres struct{ Items []map[string]any `json:"items"` }
        if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
        if len(dres.Items) > 0 {
            if et, _ := dres.Items[0]["eventType"].(string); et != "run.completed" {
                t.Fatalf("eventType = %q", et)
            }
            return
        }
        time.Sleep(20 * time.Millisecond)
    }
    t.Fatal("expected at least one webhook delivery")
}

func TestRunMetricsHistory(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())
    waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/run-metrics?runId="+run.ID, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.RunMetricsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("run-metrics: %d", rr.Code) }
    var out struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode: %v", err) }
    if len(out.Items) != 1 { t.Fatalf("items = %+v", out.Items) }
    if out.Items[0]["status"] != model.RunCompleted { t.Fatalf("entry = %+v", out.Items[0]) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestRunEventsSSE(t *testing.T) {
    s := newTestServer(t)
    run := startRun(t, s, smallOptimizeBody())
    waitForStatus(t, s, run.ID, model.RunCompleted, 5*time.Second)

    sseReq := httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")
    sseReq.Header.Set("X-Role", "admin")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.RunByIDHandler(rec, sseReq)
        close(done)
    }()

    // Give handler time to subscribe and send heartbeat
    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish(run.ID, SSEEvent{Type: "run.progress", Data: map[string]any{"runId": run.ID, "iteration": 7}})

    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: run.progress")) {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: run.progress")) {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}
