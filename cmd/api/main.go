package main

import (
    "log"
    "net/http"
    "os"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "antopt/internal/api"
    "antopt/internal/metrics"
)

func main() {
    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Optimization runs
    mux.HandleFunc("/v1/optimize", srvDeps.OptimizeHandler)
    mux.HandleFunc("/v1/runs", srvDeps.RunsIndexHandler)
    mux.HandleFunc("/v1/runs/", srvDeps.RunByIDHandler) // includes /cancel, /progress, /snapshots, /events/stream, /events/ws
    mux.HandleFunc("/v1/optimizer/config", srvDeps.OptimizerConfigHandler)
    mux.HandleFunc("/v1/admin/optimizer/config", srvDeps.AdminOptimizerConfigHandler)

    // Webhook subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.HandleFunc("/debugz", srvDeps.DebugJSON)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq/", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/runs/stats", srvDeps.RunStatsHandler)
    mux.HandleFunc("/v1/admin/run-metrics", srvDeps.RunMetricsHandler)

    // Docs and metrics
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)
    mux.HandleFunc("/console", srvDeps.SwaggerHandler)
    mux.HandleFunc("/static/", srvDeps.StaticHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    // GraphQL query endpoint and subscription bridge (SSE) for run events
    mux.HandleFunc("/graphql", srvDeps.GraphQLHTTPHandler)
    mux.HandleFunc("/graphql/subscriptions/run-events", func(w http.ResponseWriter, r *http.Request) {
        // bridge to existing SSE handler: /v1/runs/{runId}/events/stream
        id := r.URL.Query().Get("runId")
        if id == "" { http.Error(w, "runId required", http.StatusBadRequest); return }
        r.URL.Path = "/v1/runs/" + id + "/events/stream"
        srvDeps.RunByIDHandler(w, r)
    })

    // GraphQL WebSocket subscriptions endpoint
    mux.HandleFunc("/graphql/ws", srvDeps.RunsWSHandler)

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    srv := &http.Server{
        Addr:              addr,
        Handler:           api.LogMiddleware(api.RateLimitMiddleware(mux)),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}
