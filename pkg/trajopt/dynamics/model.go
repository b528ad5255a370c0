package dynamics

import (
	"errors"
	"fmt"
	"math"
)

// State is the chassis state [vx, vy, omega, px, py, theta]: field-frame
// velocities (m/s), yaw rate (rad/s), field-frame position (m), heading (rad).
type State [6]float64

// State component indices.
const (
	StateVX = iota
	StateVY
	StateOmega
	StatePX
	StatePY
	StateTheta
)

// Control is the normalized command vector [drive, strafe, turn], each axis
// in [-1, 1] before wheel mixing.
type Control [3]float64

// Control component indices.
const (
	ControlDrive = iota
	ControlStrafe
	ControlTurn
)

// Wheel order used by every per-wheel quantity.
const (
	WheelFL = iota
	WheelBL
	WheelBR
	WheelFR
	NumWheels
)

var (
	// ErrNonPositiveParam is returned when a physical parameter is zero or
	// negative.
	ErrNonPositiveParam = errors.New("dynamics: robot parameters must be positive")
)

// Params holds the physical parameters of the mecanum platform. All fields
// are SI and must be positive.
type Params struct {
	Mass        float64 // kg
	Inertia     float64 // kg*m^2 about the z axis
	WheelRadius float64 // m
	LX          float64 // m, half wheelbase along x
	LY          float64 // m, half wheelbase along y
	FreeSpeed   float64 // rad/s, motor free speed
	StallTorque float64 // N*m, motor stall torque
	TractionMax float64 // N, per-wheel traction limit
}

// DefaultParams returns parameters for a typical 15 kg competition robot.
func DefaultParams() Params {
	return Params{
		Mass:        15.0,
		Inertia:     0.5,
		WheelRadius: 0.05,
		LX:          0.15,
		LY:          0.15,
		FreeSpeed:   100.0,
		StallTorque: 1.0,
		TractionMax: 20.0,
	}
}

// Validate checks that every parameter is positive.
func (p Params) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"mass", p.Mass},
		{"inertia", p.Inertia},
		{"wheel radius", p.WheelRadius},
		{"lx", p.LX},
		{"ly", p.LY},
		{"free speed", p.FreeSpeed},
		{"stall torque", p.StallTorque},
		{"traction limit", p.TractionMax},
	}
	for _, f := range fields {
		if f.value <= 0 || math.IsNaN(f.value) {
			return fmt.Errorf("%w: %s = %v", ErrNonPositiveParam, f.name, f.value)
		}
	}
	return nil
}

// Model is the closed-form continuous dynamics of an X-configuration mecanum
// drive. Wheels are driven by motors with a linear speed-torque curve; the
// ground contact force of each wheel follows from its torque.
type Model struct {
	params Params
}

// New returns a dynamics model for the given parameters.
func New(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: params}, nil
}

// Params returns the parameters the model was built with.
func (m *Model) Params() Params {
	return m.params
}

// WheelDuties mixes the per-axis commands into per-wheel duties.
// Each duty must stay in [-1, 1] for the command to be realizable.
func WheelDuties(u Control) [NumWheels]float64 {
	drive, strafe, turn := u[ControlDrive], u[ControlStrafe], u[ControlTurn]
	return [NumWheels]float64{
		WheelFL: drive - strafe - turn,
		WheelBL: drive + strafe - turn,
		WheelBR: drive - strafe + turn,
		WheelFR: drive + strafe + turn,
	}
}

// wheelSpeeds returns the wheel angular rates implied by the body-frame
// twist (vxr, vyr, omega).
func (m *Model) wheelSpeeds(vxr, vyr, omega float64) [NumWheels]float64 {
	lsum := m.params.LX + m.params.LY
	r := m.params.WheelRadius
	return [NumWheels]float64{
		WheelFL: (vxr - vyr - lsum*omega) / r,
		WheelBL: (vxr + vyr - lsum*omega) / r,
		WheelBR: (vxr - vyr + lsum*omega) / r,
		WheelFR: (vxr + vyr + lsum*omega) / r,
	}
}

// WheelForces returns the ground-contact force of each wheel for the given
// state and control. Forces beyond the traction limit mean wheel slip; the
// optimizer bounds them with the traction constraint.
func (m *Model) WheelForces(x State, u Control) [NumWheels]float64 {
	sin, cos := math.Sincos(x[StateTheta])
	vxr := x[StateVX]*cos + x[StateVY]*sin
	vyr := -x[StateVX]*sin + x[StateVY]*cos

	speeds := m.wheelSpeeds(vxr, vyr, x[StateOmega])
	duties := WheelDuties(u)

	var forces [NumWheels]float64
	for i := range forces {
		torque := m.params.StallTorque * (duties[i] - speeds[i]/m.params.FreeSpeed)
		forces[i] = torque / m.params.WheelRadius
	}
	return forces
}

// Derivative evaluates the continuous dynamics xdot = f(x, u).
func (m *Model) Derivative(x State, u Control) State {
	sin, cos := math.Sincos(x[StateTheta])
	forces := m.WheelForces(x, u)

	// Net body-frame force and yaw torque for the X configuration.
	fx := forces[WheelFL] + forces[WheelBL] + forces[WheelBR] + forces[WheelFR]
	fy := -forces[WheelFL] + forces[WheelBL] - forces[WheelBR] + forces[WheelFR]
	tau := (m.params.LX + m.params.LY) *
		(-forces[WheelFL] - forces[WheelBL] + forces[WheelBR] + forces[WheelFR])

	ax := fx / m.params.Mass
	ay := fy / m.params.Mass
	alpha := tau / m.params.Inertia

	return State{
		StateVX:    ax*cos - ay*sin,
		StateVY:    ax*sin + ay*cos,
		StateOmega: alpha,
		StatePX:    x[StateVX],
		StatePY:    x[StateVY],
		StateTheta: x[StateOmega],
	}
}
