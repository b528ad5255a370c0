package dynamics

import "errors"

// DerivativeFunc is a continuous dynamics function xdot = f(x, u).
type DerivativeFunc func(x State, u Control) State

// ErrNilDerivative is returned when an integrator is constructed without a
// dynamics function.
var ErrNilDerivative = errors.New("dynamics: derivative function is nil")

// RK4 is the classical fourth-order Runge-Kutta one-step map. The control is
// held constant across the step (zero-order hold).
type RK4 struct {
	f DerivativeFunc
}

// NewRK4 returns an RK4 integrator over f.
func NewRK4(f DerivativeFunc) (*RK4, error) {
	if f == nil {
		return nil, ErrNilDerivative
	}
	return &RK4{f: f}, nil
}

// Step advances x by one step of size h under constant control u.
func (i *RK4) Step(x State, u Control, h float64) State {
	k1 := i.f(x, u)
	k2 := i.f(addScaled(x, h/2, k1), u)
	k3 := i.f(addScaled(x, h/2, k2), u)
	k4 := i.f(addScaled(x, h, k3), u)

	var next State
	for j := range next {
		next[j] = x[j] + h/6*(k1[j]+2*k2[j]+2*k3[j]+k4[j])
	}
	return next
}

func addScaled(x State, s float64, d State) State {
	var out State
	for j := range out {
		out[j] = x[j] + s*d[j]
	}
	return out
}
