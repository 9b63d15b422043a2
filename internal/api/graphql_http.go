package api

import (
    "encoding/json"
    "net/http"
    "strings"
)

// Minimal GraphQL-like HTTP handler for demo purposes.
// Supports queries:
// - runs: list runs for tenant
// - run(id: $id): get run by id
// Variables may contain {"id":"..."}
func (s *Server) GraphQLHTTPHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    var body struct {
        Query     string         `json:"query"`
        Variables map[string]any `json:"variables"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
    q := strings.ToLower(body.Query)
    _, tenant := s.withTenant(r)
    switch {
    case strings.Contains(q, "run("):
        id := ""
        if body.Variables != nil { if v, ok := body.Variables["id"].(string); ok { id = v } }
        if id == "" { writeProblem(w, 400, "Missing id", "", r.URL.Path); return }
        run, err := s.Store.GetRun(r.Context(), tenant, id)
        if err != nil { writeProblem(w, 404, "Not Found", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"data": map[string]any{"run": run}})
    case strings.Contains(q, "runs"):
        cursor := ""; limit := 100
        items, next, err := s.Store.ListRuns(r.Context(), tenant, "", cursor, limit)
        if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"data": map[string]any{"runs": items, "nextCursor": next}})
    default:
        writeProblem(w, 400, "Unsupported query", "", r.URL.Path)
    }
}
