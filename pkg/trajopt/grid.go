package trajopt

import (
	"math"

	"github.com/golang/geo/r2"
)

// minSegmentDist is the distance below which two consecutive effective
// positions count as coincident: the segment keeps its minimum interval
// count and distance-dependent constraints become no-ops.
const minSegmentDist = 1e-6

// Grid is the discretization of the waypoint list: effective positions,
// segment distances, per-segment interval counts and the knot index layout.
type Grid struct {
	effective []r2.Point
	distances []float64
	intervals []int
	starts    []int // len Segments+1, starts[0] = 0, starts[end] = Intervals
}

// NewGrid discretizes the waypoint list. Each segment s receives
// max(minSamples, ceil(samplesPerMeter*dist_s)) intervals. Inputs are assumed
// validated by the optimizer.
func NewGrid(waypoints []Waypoint, samplesPerMeter float64, minSamples int) *Grid {
	g := &Grid{
		effective: effectivePositions(waypoints),
	}
	segs := len(waypoints) - 1
	g.distances = make([]float64, segs)
	g.intervals = make([]int, segs)
	g.starts = make([]int, segs+1)
	for s := 0; s < segs; s++ {
		dist := g.effective[s+1].Sub(g.effective[s]).Norm()
		n := minSamples
		if dist > minSegmentDist {
			if want := int(math.Ceil(samplesPerMeter * dist)); want > n {
				n = want
			}
		}
		g.distances[s] = dist
		g.intervals[s] = n
		g.starts[s+1] = g.starts[s] + n
	}
	return g
}

// effectivePositions maps waypoints onto the positions the discretizer and
// the initial guess work with. An intake waypoint sits on its approach ray at
// IntakeDistance from the intake point, approached from the previous
// effective position; a leading intake waypoint falls back to the -x side of
// the point.
func effectivePositions(waypoints []Waypoint) []r2.Point {
	out := make([]r2.Point, len(waypoints))
	for i, wp := range waypoints {
		if wp.Kind != KindIntake {
			out[i] = r2.Point{X: wp.X, Y: wp.Y}
			continue
		}
		intake := r2.Point{X: wp.IntakeX, Y: wp.IntakeY}
		if i == 0 {
			out[i] = intake.Sub(r2.Point{X: wp.IntakeDistance})
			continue
		}
		approach := intake.Sub(out[i-1])
		if dist := approach.Norm(); dist > minSegmentDist {
			out[i] = intake.Sub(approach.Mul(wp.IntakeDistance / dist))
		} else {
			out[i] = intake.Sub(r2.Point{X: wp.IntakeDistance})
		}
	}
	return out
}

// Segments returns the number of waypoint segments.
func (g *Grid) Segments() int { return len(g.intervals) }

// Intervals returns N, the total interval count.
func (g *Grid) Intervals() int { return g.starts[len(g.starts)-1] }

// Knots returns K = N+1.
func (g *Grid) Knots() int { return g.Intervals() + 1 }

// SegmentIntervals returns n_s for segment s.
func (g *Grid) SegmentIntervals(s int) int { return g.intervals[s] }

// SegmentStart returns S[s], the first knot index of segment s. S[Segments()]
// equals the total interval count.
func (g *Grid) SegmentStart(s int) int { return g.starts[s] }

// Distance returns the effective length of segment s.
func (g *Grid) Distance(s int) float64 { return g.distances[s] }

// Effective returns the effective position of waypoint i.
func (g *Grid) Effective(i int) r2.Point { return g.effective[i] }

// SegmentOf returns seg(k): the segment whose intervals contain interval k.
func (g *Grid) SegmentOf(k int) int {
	for s := 0; s < len(g.intervals); s++ {
		if k < g.starts[s+1] {
			return s
		}
	}
	return len(g.intervals) - 1
}

// SegmentOfKnot returns the segment a knot belongs to, assigning each shared
// waypoint knot to the segment it opens and the final knot to the last
// segment.
func (g *Grid) SegmentOfKnot(k int) int {
	if k >= g.Intervals() {
		return len(g.intervals) - 1
	}
	return g.SegmentOf(k)
}

// WaypointKnot returns the knot index constrained by waypoint i: 0 for the
// first waypoint, K-1 for the last, S[i] otherwise.
func (g *Grid) WaypointKnot(i int) int {
	switch {
	case i == 0:
		return 0
	case i == len(g.starts)-1:
		return g.Knots() - 1
	default:
		return g.starts[i]
	}
}
