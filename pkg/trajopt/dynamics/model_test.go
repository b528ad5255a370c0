package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero mass", func(p *Params) { p.Mass = 0 }},
		{"negative inertia", func(p *Params) { p.Inertia = -0.5 }},
		{"zero wheel radius", func(p *Params) { p.WheelRadius = 0 }},
		{"negative traction", func(p *Params) { p.TractionMax = -1 }},
		{"nan free speed", func(p *Params) { p.FreeSpeed = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrNonPositiveParam)

			_, err := New(p)
			assert.Error(t, err)
		})
	}
}

func TestWheelDuties(t *testing.T) {
	tests := []struct {
		name string
		u    Control
		want [NumWheels]float64
	}{
		{"pure drive", Control{1, 0, 0}, [NumWheels]float64{1, 1, 1, 1}},
		{"pure strafe", Control{0, 1, 0}, [NumWheels]float64{-1, 1, -1, 1}},
		{"pure turn", Control{0, 0, 1}, [NumWheels]float64{-1, -1, 1, 1}},
		{"mixed", Control{0.5, 0.25, 0.25}, [NumWheels]float64{0, 0.5, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WheelDuties(tt.u))
		})
	}
}

func TestWheelForces(t *testing.T) {
	m, err := New(DefaultParams())
	require.NoError(t, err)

	t.Run("full drive at rest", func(t *testing.T) {
		forces := m.WheelForces(State{}, Control{1, 0, 0})
		for i := 0; i < NumWheels; i++ {
			// torque = t_max * duty, force = torque / r
			assert.InDelta(t, 20.0, forces[i], 1e-12)
		}
	})

	t.Run("back-EMF opposes motion", func(t *testing.T) {
		// Coasting forward at 1 m/s: every wheel spins at 20 rad/s and the
		// motors brake with t_max * (0 - 20/100) / r = -4 N.
		forces := m.WheelForces(State{StateVX: 1}, Control{})
		for i := 0; i < NumWheels; i++ {
			assert.InDelta(t, -4.0, forces[i], 1e-12)
		}
	})

	t.Run("zero force at free speed", func(t *testing.T) {
		// v = r * w_max is the no-load speed for a full forward duty.
		forces := m.WheelForces(State{StateVX: 5}, Control{1, 0, 0})
		for i := 0; i < NumWheels; i++ {
			assert.InDelta(t, 0.0, forces[i], 1e-12)
		}
	})

	t.Run("heading rotates the body frame", func(t *testing.T) {
		// Moving +y in the field while facing +y is pure forward motion in
		// the body frame.
		rotated := m.WheelForces(State{StateVY: 1, StateTheta: math.Pi / 2}, Control{})
		straight := m.WheelForces(State{StateVX: 1}, Control{})
		for i := 0; i < NumWheels; i++ {
			assert.InDelta(t, straight[i], rotated[i], 1e-12)
		}
	})
}

func TestDerivative(t *testing.T) {
	m, err := New(DefaultParams())
	require.NoError(t, err)

	t.Run("full drive accelerates forward", func(t *testing.T) {
		d := m.Derivative(State{}, Control{1, 0, 0})
		assert.InDelta(t, 80.0/15.0, d[StateVX], 1e-12)
		assert.InDelta(t, 0, d[StateVY], 1e-12)
		assert.InDelta(t, 0, d[StateOmega], 1e-12)
	})

	t.Run("full strafe accelerates left", func(t *testing.T) {
		d := m.Derivative(State{}, Control{0, 1, 0})
		assert.InDelta(t, 0, d[StateVX], 1e-12)
		assert.InDelta(t, 80.0/15.0, d[StateVY], 1e-12)
		assert.InDelta(t, 0, d[StateOmega], 1e-12)
	})

	t.Run("full turn spins in place", func(t *testing.T) {
		d := m.Derivative(State{}, Control{0, 0, 1})
		assert.InDelta(t, 0, d[StateVX], 1e-12)
		assert.InDelta(t, 0, d[StateVY], 1e-12)
		// alpha = 4 * F * (lx+ly) / I = 4 * 20 * 0.3 / 0.5
		assert.InDelta(t, 48.0, d[StateOmega], 1e-12)
	})

	t.Run("acceleration follows the heading", func(t *testing.T) {
		d := m.Derivative(State{StateTheta: math.Pi / 2}, Control{1, 0, 0})
		assert.InDelta(t, 0, d[StateVX], 1e-12)
		assert.InDelta(t, 80.0/15.0, d[StateVY], 1e-12)
	})

	t.Run("kinematic derivatives", func(t *testing.T) {
		x := State{StateVX: 1.5, StateVY: -0.5, StateOmega: 2}
		d := m.Derivative(x, Control{})
		assert.Equal(t, x[StateVX], d[StatePX])
		assert.Equal(t, x[StateVY], d[StatePY])
		assert.Equal(t, x[StateOmega], d[StateTheta])
	})
}
