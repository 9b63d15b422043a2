package aco

// Controller nudges the live parameters between iterations based on colony
// diversity and convergence. Every adjustment is multiplicative and clamped,
// so repeated triggers converge to the caps instead of running away.
type Controller struct {
	params *Parameters
}

func NewController(params *Parameters) *Controller {
	return &Controller{params: params}
}

// Tune applies one round of adaptation from the latest colony metrics.
// Disabled knobs (AdaptiveRho, AdaptiveAlpha, AdaptiveBeta) leave their
// parameter untouched.
func (a *Controller) Tune(diversity, convergence float64) {
	p := a.params
	if p.AdaptiveRho {
		switch {
		case diversity < 0.1:
			// Collapsing colony: evaporate harder to free trapped trails.
			p.Rho = clampF(p.Rho*1.1, 0.1, 0.9)
		case diversity > 0.5:
			// Scattered colony: slow evaporation to let structure build up.
			p.Rho = clampF(p.Rho*0.9, 0.1, 0.9)
		}
	}
	switch {
	case convergence > 0.8:
		if p.AdaptiveAlpha {
			p.Alpha = clampF(p.Alpha*0.9, 0.1, 4.0)
		}
		if p.AdaptiveBeta {
			p.Beta = clampF(p.Beta*1.1, 0.1, 4.0)
		}
	case convergence < 0.3:
		if p.AdaptiveAlpha {
			p.Alpha = clampF(p.Alpha*1.1, 0.1, 4.0)
		}
		if p.AdaptiveBeta {
			p.Beta = clampF(p.Beta*0.9, 0.1, 4.0)
		}
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
