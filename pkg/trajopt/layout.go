package trajopt

// layout maps the structured decision variables onto one flat vector:
// states X (6 per knot), then controls U (3 per interval), then one step
// size per segment.
type layout struct {
	knots     int
	intervals int
	segments  int
}

func newLayout(g *Grid) layout {
	return layout{knots: g.Knots(), intervals: g.Intervals(), segments: g.Segments()}
}

func (l layout) numVars() int {
	return 6*l.knots + 3*l.intervals + l.segments
}

// state returns the flat index of state component j at knot k.
func (l layout) state(k, j int) int {
	return 6*k + j
}

// control returns the flat index of control component j at interval k.
func (l layout) control(k, j int) int {
	return 6*l.knots + 3*k + j
}

// dt returns the flat index of the step size of segment s.
func (l layout) dt(s int) int {
	return 6*l.knots + 3*l.intervals + s
}
