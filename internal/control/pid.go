// Package control implements the PID law that turns a system temperature
// into a fan effort.
package control

import (
	"math"

	"codeberg.org/mutker/nasfanctl/internal/errors"
)

// Params are the controller parameters. They are fixed for the lifetime of
// the process.
type Params struct {
	Setpoint int
	// Overheat is read from configuration but does not take part in Step.
	Overheat int
	PwmInit  int
	PwmMin   int
	PwmMax   int
	Kp       float64
	Ki       float64
	Kd       float64
	IMax     float64
}

// State is carried from one Step to the next.
// Integral is always within [-IMax, IMax].
type State struct {
	Integral      float64
	PreviousError float64
}

// Output is the result of a single Step.
type Output struct {
	Effort     int
	Error      float64
	Derivative float64
	// Contributions of each term to the raw output.
	P, I, D float64
}

// Step advances the PID law by elapsed seconds. The output is recomputed
// from PwmInit each time, not from the previous effort.
//
// elapsed must be positive and the gains finite; otherwise state is left
// untouched and an invalid-argument error is returned.
func Step(systemTemp int, elapsed float64, p Params, s *State) (Output, error) {
	if !(elapsed > 0) || math.IsInf(elapsed, 0) {
		return Output{}, errors.New().WithData(errors.ErrInvalidArgument, struct {
			Elapsed float64
		}{elapsed})
	}
	if !p.finite() {
		return Output{}, errors.New().WithData(errors.ErrInvalidArgument, p)
	}

	e := float64(systemTemp - p.Setpoint)

	integral := clamp(s.Integral+e*elapsed, -p.IMax, p.IMax)
	derivative := (e - s.PreviousError) / elapsed

	s.Integral = integral
	s.PreviousError = e

	out := Output{
		Error:      e,
		Derivative: derivative,
		P:          p.Kp * e,
		I:          p.Ki * integral,
		D:          p.Kd * derivative,
	}

	raw := float64(p.PwmInit) + out.P + out.I + out.D
	out.Effort = int(clamp(raw, float64(p.PwmMin), float64(p.PwmMax)))

	return out, nil
}

func (p Params) finite() bool {
	for _, v := range []float64{p.Kp, p.Ki, p.Kd, p.IMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}

	return v
}

// Controller owns a State and applies Step with fixed Params.
type Controller struct {
	params Params
	state  State
}

func NewController(p Params) *Controller {
	return &Controller{params: p}
}

func (c *Controller) Step(systemTemp int, elapsed float64) (Output, error) {
	return Step(systemTemp, elapsed, c.params, &c.state)
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Params() Params {
	return c.params
}
