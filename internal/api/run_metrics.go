package api

import (
    "sync"
    "time"
)

// historyCap bounds how many finished runs are remembered per tenant.
const historyCap = 200

type runMetricsEntry struct {
    RunID      string         `json:"runId"`
    Status     string         `json:"status"`
    RecordedAt string         `json:"recordedAt"`
    Metrics    map[string]any `json:"metrics"`
}

// RunMetricsHistory keeps a bounded in-memory record of engine metrics for
// finished runs, so admin queries work even without a database.
type RunMetricsHistory struct {
    mu      sync.Mutex
    entries map[string][]runMetricsEntry // tenant -> newest last
}

func NewRunMetricsHistory() *RunMetricsHistory {
    return &RunMetricsHistory{entries: map[string][]runMetricsEntry{}}
}

func (h *RunMetricsHistory) Record(tenant, runID, status string, m map[string]any) {
    h.mu.Lock()
    defer h.mu.Unlock()
    list := append(h.entries[tenant], runMetricsEntry{
        RunID: runID, Status: status,
        RecordedAt: time.Now().UTC().Format(time.RFC3339),
        Metrics:    m,
    })
    if len(list) > historyCap { list = list[len(list)-historyCap:] }
    h.entries[tenant] = list
}

// List returns recorded entries newest first, optionally filtered to one run.
func (h *RunMetricsHistory) List(tenant, runID string) []runMetricsEntry {
    h.mu.Lock()
    defer h.mu.Unlock()
    src := h.entries[tenant]
    out := make([]runMetricsEntry, 0, len(src))
    for i := len(src) - 1; i >= 0; i-- {
        if runID == "" || src[i].RunID == runID { out = append(out, src[i]) }
    }
    return out
}
