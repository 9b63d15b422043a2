package model

import (
    "fmt"

    "antopt/internal/aco"
)

// Wire-level request/response types for the runs API.

type VariableIn struct {
    ID     string  `json:"id"`
    Type   string  `json:"type"` // continuous, discrete, binary, integer
    Min    float64 `json:"min"`
    Max    float64 `json:"max"`
    Step   float64 `json:"step,omitempty"`
    Weight float64 `json:"weight,omitempty"`
}

type ConstraintIn struct {
    ID     string  `json:"id"`
    Type   string  `json:"type"` // equality, inequality, bound, logical
    Bound  float64 `json:"bound"`
    Weight float64 `json:"weight,omitempty"`
}

type ObjectiveIn struct {
    ID       string  `json:"id"`
    Type     string  `json:"type"` // minimize, maximize
    Weight   float64 `json:"weight,omitempty"`
    Priority int     `json:"priority,omitempty"`
}

// ParametersIn overrides the server defaults; nil fields keep the default.
type ParametersIn struct {
    ColonySize           *int     `json:"colonySize,omitempty"`
    MaxIterations        *int     `json:"maxIterations,omitempty"`
    MaxTimeMinutes       *float64 `json:"maxTimeMinutes,omitempty"`
    ConvergenceThreshold *float64 `json:"convergenceThreshold,omitempty"`
    Alpha                *float64 `json:"alpha,omitempty"`
    Beta                 *float64 `json:"beta,omitempty"`
    Rho                  *float64 `json:"rho,omitempty"`
    Q0                   *float64 `json:"q0,omitempty"`
    PheromoneInit        *float64 `json:"pheromoneInit,omitempty"`
    PheromoneMin         *float64 `json:"pheromoneMin,omitempty"`
    PheromoneMax         *float64 `json:"pheromoneMax,omitempty"`
    AdaptiveRho          *bool    `json:"adaptiveRho,omitempty"`
    AdaptiveAlpha        *bool    `json:"adaptiveAlpha,omitempty"`
    AdaptiveBeta         *bool    `json:"adaptiveBeta,omitempty"`
    LocalSearch          *bool    `json:"localSearch,omitempty"`
    Elitism              *bool    `json:"elitism,omitempty"`
    ElitismRate          *float64 `json:"elitismRate,omitempty"`
}

type OptimizeRequest struct {
    TenantID    string         `json:"tenantId"`
    Name        string         `json:"name,omitempty"`
    Seed        int64          `json:"seed,omitempty"`
    Variables   []VariableIn   `json:"variables"`
    Constraints []ConstraintIn `json:"constraints,omitempty"`
    Objectives  []ObjectiveIn  `json:"objectives"`
    Parameters  *ParametersIn  `json:"parameters,omitempty"`
}

// CandidateOut is the read model for a solution.
type CandidateOut struct {
    Position         map[string]float64 `json:"position"`
    Fitness          float64            `json:"fitness"`
    ObjectiveValues  map[string]float64 `json:"objectiveValues,omitempty"`
    ConstraintValues map[string]float64 `json:"constraintValues,omitempty"`
    Feasible         bool               `json:"feasible"`
    Violations       []string           `json:"violations,omitempty"`
}

// RunOut is the read model for an optimization run.
type RunOut struct {
    ID              string         `json:"id"`
    TenantID        string         `json:"tenantId"`
    Name            string         `json:"name,omitempty"`
    Status          string         `json:"status"` // queued, running, completed, failed, canceled
    Seed            int64          `json:"seed"`
    CreatedAt       string         `json:"createdAt"`
    StartedAt       string         `json:"startedAt,omitempty"`
    FinishedAt      string         `json:"finishedAt,omitempty"`
    Best            *CandidateOut  `json:"best,omitempty"`
    Metrics         map[string]any `json:"metrics,omitempty"`
    Recommendations []string       `json:"recommendations,omitempty"`
    Error           string         `json:"error,omitempty"`
}

// Run lifecycle statuses persisted by the store.
const (
    RunQueued    = "queued"
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
    RunCanceled  = "canceled"
)

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// Problem converts the wire request into the engine's problem model.
func (r OptimizeRequest) Problem() (aco.Problem, error) {
    p := aco.Problem{}
    for _, v := range r.Variables {
        vt, err := variableType(v.Type)
        if err != nil { return p, fmt.Errorf("variable %s: %w", v.ID, err) }
        w := v.Weight
        if w == 0 { w = 1 }
        p.Variables = append(p.Variables, aco.Variable{
            ID:     aco.VariableID(v.ID),
            Type:   vt,
            Domain: aco.Domain{Min: v.Min, Max: v.Max, Step: v.Step},
            Weight: w,
        })
    }
    for _, c := range r.Constraints {
        ct, err := constraintType(c.Type)
        if err != nil { return p, fmt.Errorf("constraint %s: %w", c.ID, err) }
        w := c.Weight
        if w == 0 { w = 1 }
        p.Constraints = append(p.Constraints, aco.Constraint{
            ID: aco.ConstraintID(c.ID), Type: ct, Bound: c.Bound, Weight: w,
        })
    }
    for _, o := range r.Objectives {
        ot, err := objectiveType(o.Type)
        if err != nil { return p, fmt.Errorf("objective %s: %w", o.ID, err) }
        w := o.Weight
        if w == 0 { w = 1 }
        pri := o.Priority
        if pri == 0 { pri = 1 }
        p.Objectives = append(p.Objectives, aco.Objective{
            ID: aco.ObjectiveID(o.ID), Type: ot, Weight: w, Priority: pri,
        })
    }
    return p, p.Validate()
}

// EngineParameters applies the request's overrides on top of base.
func (r OptimizeRequest) EngineParameters(base aco.Parameters) aco.Parameters {
    in := r.Parameters
    if in == nil { return base }
    if in.ColonySize != nil { base.ColonySize = *in.ColonySize }
    if in.MaxIterations != nil { base.MaxIterations = *in.MaxIterations }
    if in.MaxTimeMinutes != nil { base.MaxTimeMinutes = *in.MaxTimeMinutes }
    if in.ConvergenceThreshold != nil { base.ConvergenceThreshold = *in.ConvergenceThreshold }
    if in.Alpha != nil { base.Alpha = *in.Alpha }
    if in.Beta != nil { base.Beta = *in.Beta }
    if in.Rho != nil { base.Rho = *in.Rho }
    if in.Q0 != nil { base.Q0 = *in.Q0 }
    if in.PheromoneInit != nil { base.PheromoneInit = *in.PheromoneInit }
    if in.PheromoneMin != nil { base.PheromoneMin = *in.PheromoneMin }
    if in.PheromoneMax != nil { base.PheromoneMax = *in.PheromoneMax }
    if in.AdaptiveRho != nil { base.AdaptiveRho = *in.AdaptiveRho }
    if in.AdaptiveAlpha != nil { base.AdaptiveAlpha = *in.AdaptiveAlpha }
    if in.AdaptiveBeta != nil { base.AdaptiveBeta = *in.AdaptiveBeta }
    if in.LocalSearch != nil { base.LocalSearch = *in.LocalSearch }
    if in.Elitism != nil { base.Elitism = *in.Elitism }
    if in.ElitismRate != nil { base.ElitismRate = *in.ElitismRate }
    return base
}

func variableType(s string) (aco.VariableType, error) {
    switch s {
    case "continuous", "":
        return aco.Continuous, nil
    case "discrete":
        return aco.Discrete, nil
    case "binary":
        return aco.Binary, nil
    case "integer":
        return aco.Integer, nil
    }
    return "", fmt.Errorf("unknown variable type %q", s)
}

func constraintType(s string) (aco.ConstraintType, error) {
    switch s {
    case "equality":
        return aco.Equality, nil
    case "inequality", "":
        return aco.Inequality, nil
    case "bound":
        return aco.Bound, nil
    case "logical":
        return aco.Logical, nil
    }
    return "", fmt.Errorf("unknown constraint type %q", s)
}

func objectiveType(s string) (aco.ObjectiveType, error) {
    switch s {
    case "minimize", "":
        return aco.Minimize, nil
    case "maximize":
        return aco.Maximize, nil
    }
    return "", fmt.Errorf("unknown objective type %q", s)
}

// NewCandidateOut converts an engine candidate into its read model.
func NewCandidateOut(c *aco.Candidate) *CandidateOut {
    if c == nil { return nil }
    out := &CandidateOut{
        Position:   map[string]float64{},
        Fitness:    c.Fitness,
        Feasible:   c.Feasible,
        Violations: c.Violations,
    }
    for k, v := range c.Position { out.Position[string(k)] = v }
    if len(c.ObjectiveValues) > 0 {
        out.ObjectiveValues = map[string]float64{}
        for k, v := range c.ObjectiveValues { out.ObjectiveValues[string(k)] = v }
    }
    if len(c.ConstraintValues) > 0 {
        out.ConstraintValues = map[string]float64{}
        for k, v := range c.ConstraintValues { out.ConstraintValues[string(k)] = v }
    }
    return out
}
