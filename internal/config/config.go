package config

import (
    "fmt"
    "os"

    "gopkg.in/yaml.v3"
)

// Load reads engine-parameter defaults from a YAML file. Values are flat
// key/value pairs matching the optimizer config keys (colonySize, alpha,
// rho, localSearch, ...). Numbers are normalized to float64 so the result
// overlays the same way a JSON config document does.
func Load(path string) (map[string]any, error) {
    b, err := os.ReadFile(path)
    if err != nil { return nil, err }
    var raw map[string]any
    if err := yaml.Unmarshal(b, &raw); err != nil {
        return nil, fmt.Errorf("parse %s: %w", path, err)
    }
    out := make(map[string]any, len(raw))
    for k, v := range raw {
        switch t := v.(type) {
        case int:
            out[k] = float64(t)
        case int64:
            out[k] = float64(t)
        case float64, bool:
            out[k] = t
        default:
            return nil, fmt.Errorf("%s: key %q has unsupported type %T", path, k, v)
        }
    }
    return out, nil
}

// FromEnv loads the file named by CONFIG_FILE, or returns nil when unset.
// A broken file is an error: silently ignoring it would run with the wrong
// defaults.
func FromEnv() (map[string]any, error) {
    path := os.Getenv("CONFIG_FILE")
    if path == "" { return nil, nil }
    return Load(path)
}
