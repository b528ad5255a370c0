package trajopt

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/itohio/MecanumTrajOpt/pkg/logger"
	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/dynamics"
	"github.com/itohio/MecanumTrajOpt/pkg/trajopt/nlp"
)

// config carries the tunables of one optimizer instance.
type config struct {
	samplesPerMeter float64
	minSamples      int
	dtMin           float64
	dtMax           float64
	headingSlack    float64
	effortWeight    float64
}

func defaultConfig() config {
	return config{
		samplesPerMeter: 20,
		minSamples:      3,
		dtMin:           0.01,
		dtMax:           1.0,
		headingSlack:    0.01,
		effortWeight:    0,
	}
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSampling sets the target sampling density in samples per meter
// (1 to 100) and the minimum interval count per segment (1 to 50).
func WithSampling(samplesPerMeter float64, minSamples int) Option {
	return func(o *Optimizer) {
		o.cfg.samplesPerMeter = samplesPerMeter
		o.cfg.minSamples = minSamples
	}
}

// WithStepBounds overrides the free-time step-size guards.
func WithStepBounds(dtMin, dtMax float64) Option {
	return func(o *Optimizer) {
		o.cfg.dtMin = dtMin
		o.cfg.dtMax = dtMax
	}
}

// WithHeadingTangentSlack sets the slack coefficient of heading-tangent
// path constraints.
func WithHeadingTangentSlack(c float64) Option {
	return func(o *Optimizer) { o.cfg.headingSlack = c }
}

// WithControlEffortWeight adds a control-effort term to the objective.
// Zero keeps the problem purely time-optimal; the weight must stay in
// [0, 10].
func WithControlEffortWeight(w float64) Option {
	return func(o *Optimizer) { o.cfg.effortWeight = w }
}

// WithSolver substitutes the NLP backend.
func WithSolver(s nlp.Solver) Option {
	return func(o *Optimizer) { o.solver = s }
}

// WithLogger routes solve lifecycle logs through log.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Optimizer) { o.log = log }
}

// WithClock substitutes the wall clock used for solve timing.
func WithClock(c clock.Clock) Option {
	return func(o *Optimizer) { o.clock = c }
}

// Optimizer plans time-optimal mecanum trajectories. One Optimizer is safe
// for sequential reuse; concurrent solves need one Optimizer each, since the
// composed solver is stateful during a run.
type Optimizer struct {
	model  *dynamics.Model
	integ  *dynamics.RK4
	solver nlp.Solver
	clock  clock.Clock
	log    zerolog.Logger
	cfg    config
}

// New builds an optimizer for a robot with the given physical parameters.
func New(params dynamics.Params, opts ...Option) (*Optimizer, error) {
	model, err := dynamics.New(params)
	if err != nil {
		return nil, err
	}
	integ, err := dynamics.NewRK4(model.Derivative)
	if err != nil {
		return nil, err
	}
	o := &Optimizer{
		model:  model,
		integ:  integ,
		solver: nlp.NewSLSQP(nlp.DefaultSLSQPOptions()),
		clock:  clock.New(),
		log:    logger.Log,
		cfg:    defaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (c config) validate() error {
	if c.samplesPerMeter < 1 || c.samplesPerMeter > 100 {
		return errors.Wrapf(ErrSamplingOutOfRange, "samples per meter %v", c.samplesPerMeter)
	}
	if c.minSamples < 1 || c.minSamples > 50 {
		return errors.Wrapf(ErrSamplingOutOfRange, "min samples %d", c.minSamples)
	}
	if c.dtMin <= 0 || c.dtMax <= c.dtMin {
		return errors.Wrapf(ErrConfigOutOfRange, "step bounds [%v, %v]", c.dtMin, c.dtMax)
	}
	if c.headingSlack < 0 {
		return errors.Wrapf(ErrConfigOutOfRange, "heading tangent slack %v", c.headingSlack)
	}
	if c.effortWeight < 0 || c.effortWeight > 10 {
		return errors.Wrapf(ErrConfigOutOfRange, "control effort weight %v", c.effortWeight)
	}
	return nil
}

// Solve plans a trajectory through waypoints subject to the given path
// constraints. Input problems are rejected with an error before any NLP
// work; solver failures are not errors — the result carries the last iterate
// with Success false.
func (o *Optimizer) Solve(waypoints []Waypoint, constraints []PathConstraint) (*Result, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}
	for _, c := range constraints {
		if c.From < 0 || c.From >= len(waypoints) || c.To < 0 || c.To >= len(waypoints) {
			return nil, errors.Wrapf(ErrWaypointIndex, "constraint %q (%s) [%d, %d]", c.ID, c.Kind, c.From, c.To)
		}
	}

	grid := NewGrid(waypoints, o.cfg.samplesPerMeter, o.cfg.minSamples)
	unwrapped := UnwrapHeadings(waypointHeadings(waypoints))
	lay := newLayout(grid)
	guess := buildGuess(grid, waypoints, unwrapped, lay)

	b := &builder{
		model:       o.model,
		integ:       o.integ,
		grid:        grid,
		waypoints:   waypoints,
		unwrapped:   unwrapped,
		constraints: constraints,
		lay:         lay,
		cfg:         o.cfg,
	}
	p := b.problem(guess)

	o.log.Debug().
		Int("waypoints", len(waypoints)).
		Int("knots", grid.Knots()).
		Int("variables", p.NumVars).
		Int("equalities", len(p.Equality)).
		Int("inequalities", len(p.Inequality)).
		Msg("trajectory problem assembled")

	start := o.clock.Now()
	sol, err := o.runSolver(p)
	elapsed := o.clock.Since(start)

	iterate := guess
	iterations := 0
	converged := false
	if sol != nil {
		iterate = sol.X
		iterations = sol.Evaluations
		converged = sol.Converged
	}
	if err != nil {
		o.log.Warn().Err(err).Msg("solver fault, returning last iterate")
	}

	res := extract(grid, lay, iterate)
	res.Success = converged
	res.Iterations = iterations
	res.SolveTimeMillis = float64(elapsed.Microseconds()) / 1000.0

	o.log.Debug().
		Bool("success", res.Success).
		Float64("total_time", res.TotalTime).
		Int("iterations", res.Iterations).
		Float64("solve_ms", res.SolveTimeMillis).
		Msg("trajectory solve finished")
	return res, nil
}

// runSolver shields the driver from backend panics; a panicking solver is
// demoted to a failed solve over the initial guess.
func (o *Optimizer) runSolver(p *nlp.Problem) (sol *nlp.Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			sol, err = nil, errors.Errorf("solver panic: %v", r)
		}
	}()
	return o.solver.Solve(p)
}

// extract unpacks the flat iterate into the structured result, rebuilding
// cumulative knot times from the per-segment step sizes.
func extract(g *Grid, lay layout, x []float64) *Result {
	knots := g.Knots()
	intervals := g.Intervals()

	times := make([]float64, knots)
	for k := 0; k < intervals; k++ {
		times[k+1] = times[k] + x[lay.dt(g.SegmentOf(k))]
	}

	states := make([][]float64, knots)
	for k := range states {
		row := make([]float64, 6)
		for j := range row {
			row[j] = x[lay.state(k, j)]
		}
		states[k] = row
	}

	controls := make([][]float64, intervals)
	for k := range controls {
		row := make([]float64, 3)
		for j := range row {
			row[j] = x[lay.control(k, j)]
		}
		controls[k] = row
	}

	return &Result{
		TotalTime: times[knots-1],
		Times:     times,
		States:    states,
		Controls:  controls,
	}
}
