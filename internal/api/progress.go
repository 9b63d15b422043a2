package api

import (
	"sync"
)

// ProgressCache keeps the latest progress frame per run so polling clients
// get an answer without replaying the stream.
type ProgressCache struct {
	mu sync.Mutex
	// key: tenant|runId
	m map[string]map[string]any
}

// NewProgressCache constructs a ProgressCache.
func NewProgressCache() *ProgressCache { return &ProgressCache{m: map[string]map[string]any{}} }

func (c *ProgressCache) key(tenant, runID string) string { return tenant + "|" + runID }

// Upsert stores or replaces the latest progress frame for a run.
func (c *ProgressCache) Upsert(tenant, runID string, frame map[string]any) {
	if tenant == "" || runID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[c.key(tenant, runID)] = frame
}

// Latest returns the most recent progress frame for a run, or nil.
func (c *ProgressCache) Latest(tenant, runID string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[c.key(tenant, runID)]
}
