package api

import (
    "fmt"

    "antopt/internal/model"
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
    if len(req.Variables) == 0 {
        return fmt.Errorf("at least one variable required")
    }
    if len(req.Objectives) == 0 {
        return fmt.Errorf("at least one objective required")
    }
    seen := map[string]bool{}
    for _, v := range req.Variables {
        if v.ID == "" {
            return fmt.Errorf("variable id must not be empty")
        }
        if seen[v.ID] {
            return fmt.Errorf("duplicate variable id: %s", v.ID)
        }
        seen[v.ID] = true
        if v.Max < v.Min {
            return fmt.Errorf("variable %s: max must be >= min", v.ID)
        }
        if v.Step < 0 {
            return fmt.Errorf("variable %s: step must be >= 0", v.ID)
        }
    }
    for _, o := range req.Objectives {
        if o.ID == "" {
            return fmt.Errorf("objective id must not be empty")
        }
        // priority 0 means unset; the model layer substitutes the default
        if o.Priority < 0 || o.Priority > 10 {
            return fmt.Errorf("objective %s: priority must be in 0..10 (0 uses the default)", o.ID)
        }
    }
    if p := req.Parameters; p != nil {
        if p.ColonySize != nil && *p.ColonySize <= 0 {
            return fmt.Errorf("colonySize must be > 0")
        }
        if p.MaxIterations != nil && *p.MaxIterations <= 0 {
            return fmt.Errorf("maxIterations must be > 0")
        }
        if p.Rho != nil && (*p.Rho < 0 || *p.Rho > 1) {
            return fmt.Errorf("rho must be in [0,1]")
        }
        if p.Q0 != nil && (*p.Q0 < 0 || *p.Q0 > 1) {
            return fmt.Errorf("q0 must be in [0,1]")
        }
        if p.ElitismRate != nil && (*p.ElitismRate <= 0 || *p.ElitismRate > 1) {
            return fmt.Errorf("elitismRate must be in (0,1]")
        }
    }
    return nil
}
