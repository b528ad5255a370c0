package trajopt

import "math"

// guessAvgSpeed is the conservative cruise speed used to seed segment times.
const guessAvgSpeed = 1.0 // m/s

// guessMinSegmentTime keeps the time seed of short or zero-length segments
// away from the dt lower bound.
const guessMinSegmentTime = 0.1 // s

// buildGuess seeds the decision vector: straight-line interpolation between
// effective waypoint positions, shortest-delta heading interpolation,
// finite-difference velocity estimates, zero yaw rate and zero controls.
// Intake waypoints are seeded at their effective position, where the approach
// ray meets the constraint circle, facing the intake point.
func buildGuess(g *Grid, waypoints []Waypoint, unwrapped []float64, lay layout) []float64 {
	x := make([]float64, lay.numVars())

	headings := make([]float64, len(waypoints))
	for i, wp := range waypoints {
		if wp.Kind == KindIntake {
			eff := g.Effective(i)
			headings[i] = math.Atan2(wp.IntakeY-eff.Y, wp.IntakeX-eff.X)
		} else {
			headings[i] = unwrapped[i]
		}
	}

	for s := 0; s < g.Segments(); s++ {
		from, to := g.Effective(s), g.Effective(s+1)
		n := g.SegmentIntervals(s)
		segTime := math.Max(g.Distance(s)/guessAvgSpeed, guessMinSegmentTime)
		x[lay.dt(s)] = segTime / float64(n)

		vx := (to.X - from.X) / segTime
		vy := (to.Y - from.Y) / segTime
		dtheta := shortestDelta(headings[s], headings[s+1])

		start := g.SegmentStart(s)
		for k := start; k <= start+n; k++ {
			local := float64(k-start) / float64(n)
			x[lay.state(k, 0)] = vx
			x[lay.state(k, 1)] = vy
			x[lay.state(k, 2)] = 0
			x[lay.state(k, 3)] = from.X + local*(to.X-from.X)
			x[lay.state(k, 4)] = from.Y + local*(to.Y-from.Y)
			x[lay.state(k, 5)] = headings[s] + local*dtheta
		}
	}

	// The trajectory ends at rest in the seed regardless of the last
	// segment's slope.
	last := g.Knots() - 1
	x[lay.state(last, 0)] = 0
	x[lay.state(last, 1)] = 0

	return x
}
