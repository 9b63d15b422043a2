package store

import (
    "context"
    "errors"
    "time"

    "antopt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Runs
    CreateRun(ctx context.Context, run model.RunOut) (model.RunOut, error)
    GetRun(ctx context.Context, tenantID, runID string) (model.RunOut, error)
    ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.RunOut, string, error)
    UpdateRun(ctx context.Context, run model.RunOut) error
    RunStats(ctx context.Context, tenantID string) (map[string]any, error)

    // Per-iteration progress snapshots for finished runs
    SaveRunSnapshots(ctx context.Context, tenantID, runID string, snaps []map[string]any) error
    ListRunSnapshots(ctx context.Context, tenantID, runID string) ([]map[string]any, error)

    // Optimizer config per tenant
    GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

    // Dead-letter queue
    ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error)
    RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")
