package trajopt

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/dynamics"
	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/nlp"
)

// headingTangentEpsilon is the constant term keeping the heading-tangent
// residual feasible at standstill.
const headingTangentEpsilon = 1e-6

// rectObstaclePower is the superellipse exponent approximating rectangular
// keep-out regions with a smooth boundary.
const rectObstaclePower = 8.0

// builder assembles the NLP of one solve: variable bounds, objective,
// dynamics defects, waypoint constraints, actuator and traction limits and
// path constraints, all over the flat variable layout.
type builder struct {
	model       *dynamics.Model
	integ       *dynamics.RK4
	grid        *Grid
	waypoints   []Waypoint
	unwrapped   []float64
	constraints []PathConstraint
	lay         layout
	cfg         config
}

func (b *builder) problem(guess []float64) *nlp.Problem {
	lower, upper := b.bounds()
	p := &nlp.Problem{
		NumVars:   b.lay.numVars(),
		Lower:     lower,
		Upper:     upper,
		Objective: b.objective(),
		Guess:     guess,
	}
	p.Equality = append(p.Equality, b.dynamicsBlocks()...)
	eq, ineq := b.waypointBlocks()
	p.Equality = append(p.Equality, eq...)
	p.Inequality = append(p.Inequality, ineq...)
	p.Inequality = append(p.Inequality, b.actuatorBlocks()...)
	p.Inequality = append(p.Inequality, b.pathBlocks()...)
	return p
}

func (b *builder) stateAt(x []float64, k int) dynamics.State {
	var s dynamics.State
	for j := range s {
		s[j] = x[b.lay.state(k, j)]
	}
	return s
}

func (b *builder) controlAt(x []float64, k int) dynamics.Control {
	var u dynamics.Control
	for j := range u {
		u[j] = x[b.lay.control(k, j)]
	}
	return u
}

// bounds builds the variable box. Velocity components are bounded by the
// limits of the waypoint opening each knot's segment; controls sit in
// [-1, 1] (each axis is the mean of four +-1 duties); step sizes carry the
// free-time guards.
func (b *builder) bounds() (lower, upper []float64) {
	n := b.lay.numVars()
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i := range lower {
		lower[i] = math.Inf(-1)
		upper[i] = math.Inf(1)
	}

	for k := 0; k < b.grid.Knots(); k++ {
		wp := b.waypoints[b.grid.SegmentOfKnot(k)]
		if wp.VMax > 0 {
			for _, j := range []int{dynamics.StateVX, dynamics.StateVY} {
				lower[b.lay.state(k, j)] = -wp.VMax
				upper[b.lay.state(k, j)] = wp.VMax
			}
		}
		if wp.OmegaMax > 0 {
			lower[b.lay.state(k, dynamics.StateOmega)] = -wp.OmegaMax
			upper[b.lay.state(k, dynamics.StateOmega)] = wp.OmegaMax
		}
	}
	for k := 0; k < b.grid.Intervals(); k++ {
		for j := 0; j < 3; j++ {
			lower[b.lay.control(k, j)] = -1
			upper[b.lay.control(k, j)] = 1
		}
	}
	for s := 0; s < b.grid.Segments(); s++ {
		lower[b.lay.dt(s)] = b.cfg.dtMin
		upper[b.lay.dt(s)] = b.cfg.dtMax
	}
	return lower, upper
}

// objective is total time sum(n_s * dt_s), optionally regularized by the
// control-effort term w * sum(|u_k|^2 * dt_seg(k)).
func (b *builder) objective() nlp.Objective {
	w := b.cfg.effortWeight
	return func(x, grad []float64) float64 {
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
		}
		total := 0.0
		for s := 0; s < b.grid.Segments(); s++ {
			n := float64(b.grid.SegmentIntervals(s))
			total += n * x[b.lay.dt(s)]
			if grad != nil {
				grad[b.lay.dt(s)] = n
			}
		}
		if w > 0 {
			for k := 0; k < b.grid.Intervals(); k++ {
				s := b.grid.SegmentOf(k)
				dt := x[b.lay.dt(s)]
				sq := 0.0
				for j := 0; j < 3; j++ {
					u := x[b.lay.control(k, j)]
					sq += u * u
					if grad != nil {
						grad[b.lay.control(k, j)] = 2 * w * u * dt
					}
				}
				total += w * sq * dt
				if grad != nil {
					grad[b.lay.dt(s)] += w * sq
				}
			}
		}
		return total
	}
}

// dynamicsBlocks emits one defect equality per interval:
// X[:,k+1] - Phi(X[:,k], U[:,k], dt[seg(k)]) = 0.
func (b *builder) dynamicsBlocks() []nlp.Block {
	blocks := make([]nlp.Block, 0, b.grid.Intervals())
	for k := 0; k < b.grid.Intervals(); k++ {
		k := k
		seg := b.grid.SegmentOf(k)
		blocks = append(blocks, nlp.Block{
			Name: fmt.Sprintf("dynamics[%d]", k),
			Dim:  6,
			Eval: func(dst, x []float64) {
				next := b.integ.Step(b.stateAt(x, k), b.controlAt(x, k), x[b.lay.dt(seg)])
				for j := 0; j < 6; j++ {
					dst[j] = x[b.lay.state(k+1, j)] - next[j]
				}
			},
		})
	}
	return blocks
}

func (b *builder) waypointBlocks() (eq, ineq []nlp.Block) {
	for i, wp := range b.waypoints {
		i, wp := i, wp
		kw := b.grid.WaypointKnot(i)

		switch wp.Kind {
		case KindConstrained:
			target := b.unwrapped[i]
			eq = append(eq, nlp.Block{
				Name: fmt.Sprintf("waypoint[%d].pose", i),
				Dim:  3,
				Eval: func(dst, x []float64) {
					dst[0] = x[b.lay.state(kw, dynamics.StatePX)] - wp.X
					dst[1] = x[b.lay.state(kw, dynamics.StatePY)] - wp.Y
					dst[2] = x[b.lay.state(kw, dynamics.StateTheta)] - target
				},
			})
		case KindUnconstrained:
			eq = append(eq, nlp.Block{
				Name: fmt.Sprintf("waypoint[%d].position", i),
				Dim:  2,
				Eval: func(dst, x []float64) {
					dst[0] = x[b.lay.state(kw, dynamics.StatePX)] - wp.X
					dst[1] = x[b.lay.state(kw, dynamics.StatePY)] - wp.Y
				},
			})
		case KindIntake:
			sinSlackSq := math.Sin(wp.IntakeSlack) * math.Sin(wp.IntakeSlack)
			eq = append(eq, nlp.Block{
				Name: fmt.Sprintf("waypoint[%d].intake", i),
				Dim:  3,
				Eval: func(dst, x []float64) {
					px := x[b.lay.state(kw, dynamics.StatePX)]
					py := x[b.lay.state(kw, dynamics.StatePY)]
					sin, cos := math.Sincos(x[b.lay.state(kw, dynamics.StateTheta)])
					dx, dy := wp.IntakeX-px, wp.IntakeY-py
					dst[0] = dx*dx + dy*dy - wp.IntakeDistance*wp.IntakeDistance
					// Heading faces the intake point without an atan2 seam.
					dst[1] = sin*dx - cos*dy
					dst[2] = x[b.lay.state(kw, dynamics.StateOmega)]
				},
			})
			ineq = append(ineq, nlp.Block{
				Name: fmt.Sprintf("waypoint[%d].approach", i),
				Dim:  4,
				Eval: func(dst, x []float64) {
					vx := x[b.lay.state(kw, dynamics.StateVX)]
					vy := x[b.lay.state(kw, dynamics.StateVY)]
					px := x[b.lay.state(kw, dynamics.StatePX)]
					py := x[b.lay.state(kw, dynamics.StatePY)]
					sin, cos := math.Sincos(x[b.lay.state(kw, dynamics.StateTheta)])
					dx, dy := wp.IntakeX-px, wp.IntakeY-py
					vSq := vx*vx + vy*vy
					cross := vx*sin - vy*cos

					// Facing toward the point, not away from it.
					dst[0] = -(cos*dx + sin*dy)
					dst[1] = vSq - wp.IntakeVMax*wp.IntakeVMax
					dst[2] = cross*cross - vSq*sinSlackSq
					// Approach moves forward along the heading.
					dst[3] = -(vx*cos + vy*sin)
				},
			})
		}

		if wp.Stop {
			eq = append(eq, nlp.Block{
				Name: fmt.Sprintf("waypoint[%d].stop", i),
				Dim:  3,
				Eval: func(dst, x []float64) {
					dst[0] = x[b.lay.state(kw, dynamics.StateVX)]
					dst[1] = x[b.lay.state(kw, dynamics.StateVY)]
					dst[2] = x[b.lay.state(kw, dynamics.StateOmega)]
				},
			})
		}
	}
	return eq, ineq
}

// actuatorBlocks emits duty and traction inequality blocks per interval.
// Duties must stay in [-1, 1]; ground-contact forces within the traction
// limit in both directions.
func (b *builder) actuatorBlocks() []nlp.Block {
	fMax := b.model.Params().TractionMax
	blocks := make([]nlp.Block, 0, 2*b.grid.Intervals())
	for k := 0; k < b.grid.Intervals(); k++ {
		k := k
		blocks = append(blocks,
			nlp.Block{
				Name: fmt.Sprintf("duty[%d]", k),
				Dim:  2 * dynamics.NumWheels,
				Eval: func(dst, x []float64) {
					duties := dynamics.WheelDuties(b.controlAt(x, k))
					for i, d := range duties {
						dst[2*i] = d - 1
						dst[2*i+1] = -d - 1
					}
				},
			},
			nlp.Block{
				Name: fmt.Sprintf("traction[%d]", k),
				Dim:  2 * dynamics.NumWheels,
				Eval: func(dst, x []float64) {
					forces := b.model.WheelForces(b.stateAt(x, k), b.controlAt(x, k))
					for i, f := range forces {
						dst[2*i] = f - fMax
						dst[2*i+1] = -f - fMax
					}
				},
			},
		)
	}
	return blocks
}

// knotRange returns the knots a path constraint covers:
// [S[from], min(S[to+1]-1, K-1)].
func (b *builder) knotRange(c PathConstraint) (first, last int) {
	first = b.grid.SegmentStart(c.From)
	last = b.grid.Knots() - 1
	if c.To+1 <= b.grid.Segments() {
		if end := b.grid.SegmentStart(c.To+1) - 1; end < last {
			last = end
		}
	}
	return first, last
}

func (b *builder) pathBlocks() []nlp.Block {
	var blocks []nlp.Block
	for _, c := range b.constraints {
		if !c.Enabled {
			continue
		}
		first, last := b.knotRange(c)
		if last < first {
			continue
		}
		if block, ok := b.pathBlock(c, first, last); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// pathBlock builds the inequality residuals of one path constraint over its
// knot range. Degenerate geometry (zero-length lane axis) yields no block.
func (b *builder) pathBlock(c PathConstraint, first, last int) (nlp.Block, bool) {
	knots := last - first + 1
	name := fmt.Sprintf("%s[%s]", c.Kind, c.ID)

	position := func(x []float64, k int) (px, py float64) {
		return x[b.lay.state(k, dynamics.StatePX)], x[b.lay.state(k, dynamics.StatePY)]
	}

	switch c.Kind {
	case ConstraintCircleObstacle:
		rSq := c.Radius * c.Radius
		return nlp.Block{
			Name: name,
			Dim:  knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					px, py := position(x, k)
					dx, dy := px-c.CenterX, py-c.CenterY
					dst[k-first] = rSq - (dx*dx + dy*dy)
				}
			},
		}, true

	case ConstraintRectObstacle:
		cx, cy := c.X+c.Width/2, c.Y+c.Height/2
		return nlp.Block{
			Name: name,
			Dim:  knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					px, py := position(x, k)
					u := 2 * (px - cx) / c.Width
					v := 2 * (py - cy) / c.Height
					dst[k-first] = 1 - math.Pow(u, rectObstaclePower) - math.Pow(v, rectObstaclePower)
				}
			},
		}, true

	case ConstraintStayInRect:
		return nlp.Block{
			Name: name,
			Dim:  4 * knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					px, py := position(x, k)
					i := 4 * (k - first)
					dst[i] = c.X - px
					dst[i+1] = px - (c.X + c.Width)
					dst[i+2] = c.Y - py
					dst[i+3] = py - (c.Y + c.Height)
				}
			},
		}, true

	case ConstraintStayInLane:
		a := b.grid.Effective(c.From)
		axis := b.grid.Effective(c.To).Sub(a)
		length := axis.Norm()
		if length <= minSegmentDist {
			return nlp.Block{}, false
		}
		half := c.Width / 2
		return nlp.Block{
			Name: name,
			Dim:  2 * knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					px, py := position(x, k)
					d := (r2.Point{X: px, Y: py}).Sub(a).Cross(axis) / length
					i := 2 * (k - first)
					dst[i] = d - half
					dst[i+1] = -d - half
				}
			},
		}, true

	case ConstraintHeadingTangent:
		slack := b.cfg.headingSlack
		return nlp.Block{
			Name: name,
			Dim:  knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					vx := x[b.lay.state(k, dynamics.StateVX)]
					vy := x[b.lay.state(k, dynamics.StateVY)]
					sin, cos := math.Sincos(x[b.lay.state(k, dynamics.StateTheta)])
					cross := vx*sin - vy*cos
					dst[k-first] = cross*cross - slack*(vx*vx+vy*vy) - headingTangentEpsilon
				}
			},
		}, true

	case ConstraintMaxVelocity:
		vSqMax := c.VMax * c.VMax
		return nlp.Block{
			Name: name,
			Dim:  knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					vx := x[b.lay.state(k, dynamics.StateVX)]
					vy := x[b.lay.state(k, dynamics.StateVY)]
					dst[k-first] = vx*vx + vy*vy - vSqMax
				}
			},
		}, true

	case ConstraintMaxOmega:
		return nlp.Block{
			Name: name,
			Dim:  2 * knots,
			Eval: func(dst, x []float64) {
				for k := first; k <= last; k++ {
					omega := x[b.lay.state(k, dynamics.StateOmega)]
					i := 2 * (k - first)
					dst[i] = omega - c.OmegaMax
					dst[i+1] = -omega - c.OmegaMax
				}
			},
		}, true
	}
	return nlp.Block{}, false
}
