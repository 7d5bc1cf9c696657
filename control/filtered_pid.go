// Package control implements the feedback controllers used by the
// teleoperation engine.
package control

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PIDConfig holds component-wise gains for a 6-DoF filtered PID
// controller. Components 0..2 are the linear axes, 3..5 the angular axes;
// there is no cross-coupling. Tau is the derivative low-pass time constant
// in seconds and trades noise rejection against lag.
type PIDConfig struct {
	Kp  [6]float64 `json:"kp"`
	Ki  [6]float64 `json:"ki"`
	Kd  [6]float64 `json:"kd"`
	Tau float64    `json:"tau"`
}

// Validate returns an error if the configuration cannot produce a usable
// controller. Gain validation is startup-fatal on purpose; a mistuned
// force loop should never start.
func (cfg PIDConfig) Validate() error {
	hasGain := false
	for i := 0; i < 6; i++ {
		if cfg.Kp[i] != 0 || cfg.Ki[i] != 0 || cfg.Kd[i] != 0 {
			hasGain = true
		}
		if cfg.Kd[i] != 0 && cfg.Tau <= 0 {
			return errors.Errorf("pid config has kd[%d] set but tau %f is not positive", i, cfg.Tau)
		}
	}
	if !hasGain {
		return errors.New("pid config should have at least one nonzero kp, ki or kd component")
	}
	if cfg.Tau < 0 {
		return errors.Errorf("pid config tau %f should not be negative", cfg.Tau)
	}
	return nil
}

// FilteredPID is a 6-DoF PID controller with a first-order low-pass on the
// derivative term. A raw derivative of error amplifies feedback-channel
// noise straight into the command; the filter bounds that at the cost of
// lag set by Tau.
//
// The integral term is intentionally unclamped. Callers needing anti-windup
// or output saturation wrap Update rather than changing tuned behavior here.
type FilteredPID struct {
	mu        sync.Mutex
	cfg       PIDConfig
	integral  [6]float64
	prevError [6]float64
	filtDeriv [6]float64
	out       [6]float64
}

// NewFilteredPID validates the config and returns a controller with zeroed
// state.
func NewFilteredPID(cfg PIDConfig) (*FilteredPID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FilteredPID{cfg: cfg}, nil
}

// Update advances the controller by one step. dt must be the actual
// elapsed time since the previous call, not the nominal tick period; a
// starved scheduler otherwise silently detunes the integral and derivative
// terms. A nonpositive dt holds and returns the previous output.
func (p *FilteredPID) Update(err [6]float64, dt time.Duration) [6]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dtS := dt.Seconds()
	if dtS <= 0 {
		return p.out
	}
	alpha := dtS / (p.cfg.Tau + dtS)
	for i := 0; i < 6; i++ {
		p.integral[i] += err[i] * dtS
		raw := (err[i] - p.prevError[i]) / dtS
		p.filtDeriv[i] = alpha*raw + (1-alpha)*p.filtDeriv[i]
		p.prevError[i] = err[i]
		p.out[i] = p.cfg.Kp[i]*err[i] + p.cfg.Ki[i]*p.integral[i] + p.cfg.Kd[i]*p.filtDeriv[i]
	}
	return p.out
}

// Reset zeroes the integral, previous error and filtered derivative. State
// is never reset implicitly; mode transitions call this explicitly so the
// controller does not carry stale error across a re-anchored reference.
func (p *FilteredPID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = [6]float64{}
	p.prevError = [6]float64{}
	p.filtDeriv = [6]float64{}
	p.out = [6]float64{}
}
