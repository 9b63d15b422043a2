// Package api implements HTTP handlers and helpers for the optimization service.
package api

import (
    "net/http"
    "strings"
)

type Principal struct {
    Tenant string
    Role   string // admin, operator, viewer
}

// getPrincipal extracts tenant and role from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            return Principal{Tenant: normalizeTenantID(pr.Tenant), Role: pr.Role}
        }
    }
    tenant := r.Header.Get("X-Tenant-Id")
    role := r.Header.Get("X-Role")
    if tenant == "" {
        tenant = "t_demo"
    }
    tenant = normalizeTenantID(tenant)
    if role == "" {
        role = "admin"
    }
    return Principal{Tenant: tenant, Role: role}
}

func normalizeTenantID(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanSubmit reports whether the principal may start or cancel runs.
func (p Principal) CanSubmit() bool { return p.Role == "admin" || p.Role == "operator" }
