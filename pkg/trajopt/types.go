// Package trajopt plans time-optimal trajectories for four-wheel mecanum
// robots through an ordered waypoint list. The problem is a free-time optimal
// control program discretized by direct multiple shooting with RK4, with one
// shared step-size variable per waypoint segment, solved through the nlp
// package.
package trajopt

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewWaypoints is returned when fewer than two waypoints are given.
	ErrTooFewWaypoints = errors.New("trajopt: at least two waypoints are required")

	// ErrSamplingOutOfRange is returned for sampling densities outside
	// [1, 100] samples/m or minimum samples outside [1, 50].
	ErrSamplingOutOfRange = errors.New("trajopt: sampling parameters out of range")

	// ErrConfigOutOfRange is returned for invalid optimizer tunables: step
	// bounds, heading-tangent slack, or control-effort weight.
	ErrConfigOutOfRange = errors.New("trajopt: optimizer configuration out of range")

	// ErrWaypointIndex is returned when a path constraint references a
	// waypoint index that does not exist.
	ErrWaypointIndex = errors.New("trajopt: constraint references waypoint out of range")

	// ErrUnknownKind is returned for unrecognized waypoint or constraint
	// kinds.
	ErrUnknownKind = errors.New("trajopt: unknown kind")
)

// WaypointKind selects how a waypoint constrains the trajectory.
type WaypointKind int

const (
	// KindConstrained pins position and heading.
	KindConstrained WaypointKind = iota
	// KindUnconstrained pins position only; heading is free.
	KindUnconstrained
	// KindIntake places the robot on a circle around an intake point, facing
	// the point, with bounded approach velocity.
	KindIntake
)

func (k WaypointKind) String() string {
	switch k {
	case KindConstrained:
		return "constrained"
	case KindUnconstrained:
		return "unconstrained"
	case KindIntake:
		return "intake"
	}
	return fmt.Sprintf("WaypointKind(%d)", int(k))
}

// ParseWaypointKind maps the wire names onto WaypointKind values.
func ParseWaypointKind(s string) (WaypointKind, error) {
	switch s {
	case "constrained", "":
		return KindConstrained, nil
	case "unconstrained":
		return KindUnconstrained, nil
	case "intake":
		return KindIntake, nil
	}
	return 0, fmt.Errorf("%w: waypoint kind %q", ErrUnknownKind, s)
}

// Waypoint is one entry of the ordered list the trajectory must pass through.
// VMax and OmegaMax bound the segment that starts at this waypoint. The
// Intake fields are interpreted only when Kind is KindIntake.
type Waypoint struct {
	X       float64
	Y       float64
	Heading float64 // rad
	Stop    bool    // zero velocity at this waypoint

	VMax     float64 // m/s, segment linear velocity bound
	OmegaMax float64 // rad/s, segment angular velocity bound

	Kind WaypointKind

	IntakeX        float64 // intake point
	IntakeY        float64
	IntakeDistance float64 // m, radius of the approach circle
	IntakeVMax     float64 // m/s, approach speed cap
	IntakeSlack    float64 // rad, velocity direction slack
}

// NewWaypoint returns a stop waypoint at (x, y, heading) with the default
// segment limits.
func NewWaypoint(x, y, heading float64) Waypoint {
	return Waypoint{
		X:        x,
		Y:        y,
		Heading:  heading,
		Stop:     true,
		VMax:     3.0,
		OmegaMax: 10.0,
	}
}

// ConstraintKind selects the geometry of a path constraint.
type ConstraintKind int

const (
	// ConstraintCircleObstacle keeps the position outside a circle.
	ConstraintCircleObstacle ConstraintKind = iota
	// ConstraintRectObstacle keeps the position outside an axis-aligned
	// rectangle (smooth superellipse approximation).
	ConstraintRectObstacle
	// ConstraintStayInRect keeps the position inside an axis-aligned
	// rectangle.
	ConstraintStayInRect
	// ConstraintStayInLane bounds the perpendicular distance from the line
	// through the two endpoint waypoints.
	ConstraintStayInLane
	// ConstraintHeadingTangent keeps the velocity roughly aligned with the
	// heading.
	ConstraintHeadingTangent
	// ConstraintMaxVelocity caps linear speed.
	ConstraintMaxVelocity
	// ConstraintMaxOmega caps angular speed.
	ConstraintMaxOmega
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintCircleObstacle:
		return "circle-obstacle"
	case ConstraintRectObstacle:
		return "rect-obstacle"
	case ConstraintStayInRect:
		return "stay-in-rect"
	case ConstraintStayInLane:
		return "stay-in-lane"
	case ConstraintHeadingTangent:
		return "heading-tangent"
	case ConstraintMaxVelocity:
		return "max-velocity"
	case ConstraintMaxOmega:
		return "max-omega"
	}
	return fmt.Sprintf("ConstraintKind(%d)", int(k))
}

// ParseConstraintKind maps the wire names onto ConstraintKind values.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	for _, k := range []ConstraintKind{
		ConstraintCircleObstacle, ConstraintRectObstacle, ConstraintStayInRect,
		ConstraintStayInLane, ConstraintHeadingTangent, ConstraintMaxVelocity,
		ConstraintMaxOmega,
	} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: constraint kind %q", ErrUnknownKind, s)
}

// PathConstraint applies a geometric or kinodynamic restriction over the
// knots between two waypoints. Param fields are interpreted per kind;
// unused fields are ignored.
type PathConstraint struct {
	ID      string
	Kind    ConstraintKind
	From    int // starting waypoint index
	To      int // ending waypoint index
	Enabled bool

	CenterX float64 // circle obstacle center
	CenterY float64
	Radius  float64 // circle obstacle radius

	X      float64 // rectangle origin
	Y      float64
	Width  float64 // rectangle width, lane width
	Height float64 // rectangle height

	VMax     float64 // max-velocity cap
	OmegaMax float64 // max-omega cap
}

// Result is the extracted trajectory of one solve. On failure Success is
// false and the fields hold the solver's last iterate, or the initial guess
// when the solver faulted without returning one.
type Result struct {
	Success         bool
	TotalTime       float64     // s
	Times           []float64   // len K, cumulative, Times[0] = 0
	States          [][]float64 // K x 6: vx, vy, omega, px, py, theta
	Controls        [][]float64 // N x 3: drive, strafe, turn
	Iterations      int
	SolveTimeMillis float64
}
