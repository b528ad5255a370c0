//go:build scenarios

// Full solves through the NLopt backend. These need the native NLopt library
// and take seconds per case:
//
//	go test -tags scenarios ./pkg/trajopt/ -run TestScenario -v
package trajopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/dynamics"
)

const feasTol = 1e-3

func solveScenario(t *testing.T, waypoints []Waypoint, constraints []PathConstraint) *Result {
	t.Helper()
	opt, err := New(dynamics.DefaultParams(), WithSampling(20, 3))
	require.NoError(t, err)
	res, err := opt.Solve(waypoints, constraints)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

// reintegrate checks the dynamics-defect property: pushing the returned
// controls through the one-step map from the first state reproduces every
// knot state.
func reintegrate(t *testing.T, res *Result) {
	t.Helper()
	model, err := dynamics.New(dynamics.DefaultParams())
	require.NoError(t, err)
	integ, err := dynamics.NewRK4(model.Derivative)
	require.NoError(t, err)

	var x dynamics.State
	copy(x[:], res.States[0])
	for k := 0; k < len(res.Controls); k++ {
		var u dynamics.Control
		copy(u[:], res.Controls[k])
		x = integ.Step(x, u, res.Times[k+1]-res.Times[k])
		for j := 0; j < 6; j++ {
			assert.InDelta(t, res.States[k+1][j], x[j], 10*feasTol, "knot %d state %d", k+1, j)
		}
	}
}

func TestScenarioForwardDash(t *testing.T) {
	waypoints := []Waypoint{NewWaypoint(0, 0, 0), NewWaypoint(1, 0, 0)}
	res := solveScenario(t, waypoints, nil)

	assert.Greater(t, res.TotalTime, 0.5)
	assert.Less(t, res.TotalTime, 3.0)

	last := res.States[len(res.States)-1]
	want := []float64{0, 0, 0, 1, 0, 0}
	for j := range want {
		assert.InDelta(t, want[j], last[j], feasTol, "final state %d", j)
	}
	for k, s := range res.States {
		assert.InDelta(t, 0, s[1], 10*feasTol, "vy at knot %d", k)
		assert.InDelta(t, 0, s[2], 10*feasTol, "omega at knot %d", k)
	}
	reintegrate(t, res)
}

func TestScenarioRightAngleTurn(t *testing.T) {
	waypoints := []Waypoint{
		NewWaypoint(0, 0, 0), NewWaypoint(1, 0, math.Pi/2), NewWaypoint(1, 1, math.Pi/2),
	}
	res := solveScenario(t, waypoints, nil)

	for k := 1; k < len(res.Times); k++ {
		assert.Greater(t, res.Times[k], res.Times[k-1])
	}
	grid := NewGrid(waypoints, 20, 3)
	for _, i := range []int{0, 1, 2} {
		s := res.States[grid.WaypointKnot(i)]
		assert.InDelta(t, 0, s[0], feasTol)
		assert.InDelta(t, 0, s[1], feasTol)
		assert.InDelta(t, 0, s[2], feasTol)
	}
}

func TestScenarioCircleAvoidance(t *testing.T) {
	waypoints := []Waypoint{NewWaypoint(0, 0, 0), NewWaypoint(2, 0, 0)}
	constraints := []PathConstraint{{
		ID: "obstacle", Kind: ConstraintCircleObstacle, From: 0, To: 1, Enabled: true,
		CenterX: 1, CenterY: 0, Radius: 0.3,
	}}
	res := solveScenario(t, waypoints, constraints)

	for k, s := range res.States {
		dx, dy := s[3]-1, s[4]
		assert.GreaterOrEqual(t, dx*dx+dy*dy, 0.09-feasTol, "knot %d", k)
	}
}

func TestScenarioIntakeApproach(t *testing.T) {
	intake := NewWaypoint(0, 0, 0)
	intake.Kind = KindIntake
	intake.IntakeX, intake.IntakeY = 2, 0
	intake.IntakeDistance = 0.5
	intake.IntakeVMax = 0.8
	intake.IntakeSlack = 0.1
	intake.Stop = false
	waypoints := []Waypoint{NewWaypoint(0, 0, 0), intake}

	res := solveScenario(t, waypoints, nil)
	last := res.States[len(res.States)-1]
	px, py, theta := last[3], last[4], last[5]

	dist := math.Hypot(px-2, py)
	assert.InDelta(t, 0.5, dist, feasTol)
	// Heading points into the intake point.
	assert.InDelta(t, 0, math.Sin(theta)*(2-px)-math.Cos(theta)*py, feasTol)
	assert.GreaterOrEqual(t, math.Cos(theta)*(2-px)+math.Sin(theta)*py, -feasTol)
	assert.LessOrEqual(t, math.Hypot(last[0], last[1]), 0.8+feasTol)
	assert.InDelta(t, 0, last[2], feasTol)
}

func TestScenarioDeterministicObjective(t *testing.T) {
	waypoints := []Waypoint{NewWaypoint(0, 0, 0), NewWaypoint(1, 0.5, math.Pi/4)}
	first := solveScenario(t, waypoints, nil)
	second := solveScenario(t, waypoints, nil)
	assert.InDelta(t, first.TotalTime, second.TotalTime, 1e-4)
}
