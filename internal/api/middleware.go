package api

import (
    "log"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "golang.org/x/time/rate"

    "antopt/internal/metrics"
)

// statusWriter captures the response status for logging/metrics.
type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
    if f, ok := w.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// LogMiddleware logs each request and records Prometheus HTTP metrics.
func LogMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: 200}
        next.ServeHTTP(sw, r)
        dur := time.Since(start)
        path := metricPath(r.URL.Path)
        status := strconv.Itoa(sw.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur)
    })
}

// metricPath collapses run ids so label cardinality stays bounded.
func metricPath(p string) string {
    for _, prefix := range []string{"/v1/runs/", "/v1/subscriptions/", "/v1/admin/webhook-deliveries/", "/v1/admin/webhook-dlq/"} {
        if strings.HasPrefix(p, prefix) {
            rest := strings.TrimPrefix(p, prefix)
            if i := strings.IndexByte(rest, '/'); i >= 0 {
                return prefix + ":id" + rest[i:]
            }
            return prefix + ":id"
        }
    }
    return p
}

// RateLimitMiddleware applies a global token-bucket limit, tunable with
// RATE_RPS and RATE_BURST. Streaming endpoints are exempt.
func RateLimitMiddleware(next http.Handler) http.Handler {
    rps := 50.0
    burst := 100
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { rps = f }
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { burst = n }
    }
    lim := rate.NewLimiter(rate.Limit(rps), burst)
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if strings.HasSuffix(r.URL.Path, "/events/stream") || strings.HasSuffix(r.URL.Path, "/events/ws") || r.URL.Path == "/graphql/ws" {
            next.ServeHTTP(w, r)
            return
        }
        if !lim.Allow() {
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
