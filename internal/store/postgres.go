package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "antopt/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, err }
    if err := db.Ping(); err != nil { return nil, err }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies *.sql files from dir in lexical order (dev helper; no
// version tracking, files must be idempotent).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    var files []string
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { files = append(files, e.Name()) }
    }
    sort.Strings(files)
    for _, f := range files {
        b, err := os.ReadFile(filepath.Join(dir, f))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil { return err }
    }
    return nil
}

// Runs

func (p *Postgres) CreateRun(ctx context.Context, run model.RunOut) (model.RunOut, error) {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.Status == "" { run.Status = model.RunQueued }
    now := time.Now().UTC()
    if run.CreatedAt == "" { run.CreatedAt = now.Format(time.RFC3339) }
    _, err := p.db.ExecContext(ctx, `INSERT INTO runs (id, tenant_id, name, status, seed, created_at, best, metrics, recommendations, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
        run.ID, run.TenantID, nullIfEmpty(run.Name), run.Status, run.Seed, now,
        jsonOrNull(run.Best), jsonOrNull(run.Metrics), jsonOrNull(run.Recommendations), nullIfEmpty(run.Error))
    if err != nil { return model.RunOut{}, err }
    return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, runID string) (model.RunOut, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id, COALESCE(name,''), status, seed, created_at, started_at, finished_at, best, metrics, recommendations, COALESCE(error,'')
        FROM runs WHERE tenant_id=$1 AND id=$2`, tenantID, runID)
    r, err := scanRun(row)
    if errors.Is(err, sql.ErrNoRows) { return model.RunOut{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.RunOut, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, tenant_id, COALESCE(name,''), status, seed, created_at, started_at, finished_at, best, metrics, recommendations, COALESCE(error,'')
        FROM runs WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if status != "" { q += ` AND status=$2`; args = append(args, status); idx++ }
    if cursor != "" { q += ` AND id::text > $` + strconv.Itoa(idx); args = append(args, cursor); idx++ }
    q += ` ORDER BY id LIMIT $` + strconv.Itoa(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.RunOut{}
    var last string
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
        last = r.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.RunOut) error {
    res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$3, started_at=$4, finished_at=$5, best=$6, metrics=$7, recommendations=$8, error=$9, updated_at=now()
        WHERE tenant_id=$1 AND id=$2`,
        run.TenantID, run.ID, run.Status, nullTime(run.StartedAt), nullTime(run.FinishedAt),
        jsonOrNull(run.Best), jsonOrNull(run.Metrics), jsonOrNull(run.Recommendations), nullIfEmpty(run.Error))
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) RunStats(ctx context.Context, tenantID string) (map[string]any, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT status, count(*) FROM runs WHERE tenant_id=$1 GROUP BY status`, tenantID)
    if err != nil { return nil, err }
    defer rows.Close()
    byStatus := map[string]int{}
    total := 0
    for rows.Next() {
        var st string
        var n int
        if err := rows.Scan(&st, &n); err != nil { return nil, err }
        byStatus[st] = n
        total += n
    }
    return map[string]any{"total": total, "byStatus": byStatus}, nil
}

func (p *Postgres) SaveRunSnapshots(ctx context.Context, tenantID, runID string, snaps []map[string]any) error {
    if len(snaps) == 0 { return nil }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    for i, s := range snaps {
        b, _ := json.Marshal(s)
        if _, err := tx.ExecContext(ctx, `INSERT INTO run_snapshots (id, tenant_id, run_id, seq, data) VALUES ($1,$2,$3,$4,$5)`,
            uuid.New().String(), tenantID, runID, i, b); err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) ListRunSnapshots(ctx context.Context, tenantID, runID string) ([]map[string]any, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT data FROM run_snapshots WHERE tenant_id=$1 AND run_id=$2 ORDER BY seq`, tenantID, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var b []byte
        if err := rows.Scan(&b); err != nil { return nil, err }
        var m map[string]any
        if json.Unmarshal(b, &m) == nil { out = append(out, m) }
    }
    return out, nil
}

// Optimizer config

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    b, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, b)
    return err
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    ev, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb)`, tenantID, ev)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
            id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, delivery_id::text, event_type, url, COALESCE(last_error,''), attempts, created_at FROM webhook_dlq WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, delivery_id::text, event_type, url, COALESCE(last_error,''), attempts, created_at FROM webhook_dlq WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts int
        var created time.Time
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    var delID, et, url, secret string
    var payload []byte
    err := p.db.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&delID, &et, &url, &secret, &payload)
    if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
    if err != nil { return err }
    if _, err := p.EnqueueWebhook(ctx, tenantID, delID, et, url, secret, payload); err != nil { return err }
    _, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Helpers

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(row rowScanner) (model.RunOut, error) {
    var r model.RunOut
    var created time.Time
    var started, finished sql.NullTime
    var best, metrics, recs []byte
    if err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.Status, &r.Seed, &created, &started, &finished, &best, &metrics, &recs, &r.Error); err != nil {
        return r, err
    }
    r.CreatedAt = created.UTC().Format(time.RFC3339)
    if started.Valid { r.StartedAt = started.Time.UTC().Format(time.RFC3339) }
    if finished.Valid { r.FinishedAt = finished.Time.UTC().Format(time.RFC3339) }
    if len(best) > 0 { _ = json.Unmarshal(best, &r.Best) }
    if len(metrics) > 0 { _ = json.Unmarshal(metrics, &r.Metrics) }
    if len(recs) > 0 { _ = json.Unmarshal(recs, &r.Recommendations) }
    return r, nil
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func nullTime(s string) any {
    if s == "" { return nil }
    t, err := time.Parse(time.RFC3339, s)
    if err != nil { return nil }
    return t
}

func jsonOrNull(v any) any {
    if v == nil { return nil }
    b, err := json.Marshal(v)
    if err != nil { return nil }
    if string(b) == "null" { return nil }
    return b
}

