package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "antopt/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu      sync.Mutex
    runs    map[string]model.RunOut // id -> run
    runsTen map[string][]string     // tenant -> run ids, insertion order
    snaps   map[string][]map[string]any // runId -> snapshots
    subs    map[string][]model.Subscription // tenant -> subscriptions
    optCfg  map[string]map[string]any       // tenant -> config
    // Webhook queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    dlq                []map[string]any
}

func NewMemory() *Memory {
    return &Memory{
        runs:    map[string]model.RunOut{},
        runsTen: map[string][]string{},
        snaps:   map[string][]map[string]any{},
        subs:    map[string][]model.Subscription{},
        optCfg:  map[string]map[string]any{},
        deliveries:         map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dlq:                []map[string]any{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) CreateRun(ctx context.Context, run model.RunOut) (model.RunOut, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt == "" { run.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    if run.Status == "" { run.Status = model.RunQueued }
    m.runs[run.ID] = run
    m.runsTen[run.TenantID] = append(m.runsTen[run.TenantID], run.ID)
    return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, runID string) (model.RunOut, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return model.RunOut{}, ErrNotFound }
    return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.RunOut, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.runsTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.RunOut{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        r := m.runs[ids[i]]
        if status == "" || r.Status == status { out = append(out, r) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.RunOut) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.runs[run.ID]
    if !ok || cur.TenantID != run.TenantID { return ErrNotFound }
    m.runs[run.ID] = run
    return nil
}

func (m *Memory) RunStats(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    byStatus := map[string]int{}
    total := 0
    for _, id := range m.runsTen[tenantID] {
        r := m.runs[id]
        byStatus[r.Status]++
        total++
    }
    return map[string]any{"total": total, "byStatus": byStatus}, nil
}

func (m *Memory) SaveRunSnapshots(ctx context.Context, tenantID, runID string, snaps []map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    m.snaps[runID] = append(m.snaps[runID], snaps...)
    return nil
}

func (m *Memory) ListRunSnapshots(ctx context.Context, tenantID, runID string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return nil, ErrNotFound }
    return append([]map[string]any{}, m.snaps[runID]...), nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cfg, ok := m.optCfg[tenantID]
    if !ok { return nil, nil }
    out := map[string]any{}
    for k, v := range cfg { out[k] = v }
    return out, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cp := map[string]any{}
    for k, v := range cfg { cp[k] = v }
    m.optCfg[tenantID] = cp
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sub := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
    return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Subscription{}
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events {
            if e == eventType || e == "*" { out = append(out, s); break }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i, s := range subs {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Subscription{}
    var next string
    for i := start; i < len(subs) && len(out) < limit; i++ {
        out = append(out, subs[i])
        next = subs[i].ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    for i, s := range subs {
        if s.ID == id {
            m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{
        ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
        EventType: eventType, URL: url, Secret: secret, Payload: payload,
        Status: "pending",
    }}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 50 }
    now := time.Now()
    out := []WebhookDelivery{}
    for _, d := range m.deliveries {
        if d.Status != "pending" { continue }
        if d.NextAttemptAt.After(now) { continue }
        out = append(out, d.WebhookDelivery)
        if len(out) >= limit { break }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else if nextAttemptAt != nil {
        d.NextAttemptAt = *nextAttemptAt
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Attempts++
    d.Status = "dead"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    m.dlq = append(m.dlq, m.deliveryView(d))
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []map[string]any{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.deliveries[ids[i]]
        if status == "" || d.Status == status { out = append(out, m.deliveryView(d)) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Time{}
    return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    out := []map[string]any{}
    for _, item := range m.dlq {
        if item["tenantId"] == tenantID { out = append(out, item) }
        if len(out) >= limit { break }
    }
    return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok || d.TenantID != tenantID || d.Status != "dead" { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Time{}
    for i, item := range m.dlq {
        if item["id"] == id {
            m.dlq = append(m.dlq[:i], m.dlq[i+1:]...)
            break
        }
    }
    return nil
}

func (m *Memory) deliveryView(d *memDelivery) map[string]any {
    v := map[string]any{
        "id":             d.ID,
        "tenantId":       d.TenantID,
        "subscriptionId": d.SubscriptionID,
        "eventType":      d.EventType,
        "url":            d.URL,
        "status":         d.Status,
        "attempts":       d.Attempts,
        "responseCode":   d.ResponseCode,
        "latencyMs":      d.LatencyMs,
    }
    if d.LastError != "" { v["lastError"] = d.LastError }
    if d.DeliveredAt != nil { v["deliveredAt"] = d.DeliveredAt.UTC().Format(time.RFC3339) }
    return v
}
