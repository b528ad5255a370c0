package nlp

import (
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// SLSQPOptions configure the NLopt backend.
type SLSQPOptions struct {
	// MaxEvaluations caps objective evaluations; hitting the cap is reported
	// as non-convergence.
	MaxEvaluations int
	// Tolerance is the primal (relative step) tolerance.
	Tolerance float64
	// AcceptableTolerance is the relative objective tolerance and the
	// feasibility threshold applied to the returned iterate.
	AcceptableTolerance float64
	// ConstraintTolerance is handed to NLopt per constraint component.
	ConstraintTolerance float64
}

// DefaultSLSQPOptions returns the solver settings used by the optimizer.
func DefaultSLSQPOptions() SLSQPOptions {
	return SLSQPOptions{
		MaxEvaluations:      1000,
		Tolerance:           1e-6,
		AcceptableTolerance: 1e-4,
		ConstraintTolerance: 1e-6,
	}
}

// SLSQP solves problems with NLopt's gradient-based sequential quadratic
// programming algorithm. Constraint Jacobians are formed by central finite
// differences; the objective supplies its own gradient.
type SLSQP struct {
	opts SLSQPOptions
}

var _ Solver = (*SLSQP)(nil)

// NewSLSQP returns an SLSQP solver with the given options. Zero-valued
// options fall back to their defaults.
func NewSLSQP(opts SLSQPOptions) *SLSQP {
	def := DefaultSLSQPOptions()
	if opts.MaxEvaluations <= 0 {
		opts.MaxEvaluations = def.MaxEvaluations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.AcceptableTolerance <= 0 {
		opts.AcceptableTolerance = def.AcceptableTolerance
	}
	if opts.ConstraintTolerance <= 0 {
		opts.ConstraintTolerance = def.ConstraintTolerance
	}
	return &SLSQP{opts: opts}
}

// Solve runs SLSQP on p. Non-convergence (iteration cap, roundoff, stall)
// is reported through Solution.Converged, never as an error; the error path
// is reserved for setup faults in the NLopt binding.
func (s *SLSQP) Solve(p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(p.NumVars))
	if err != nil {
		return nil, errors.Wrap(err, "creating nlopt handle")
	}
	defer opt.Destroy()

	if err := opt.SetLowerBounds(p.Lower); err != nil {
		return nil, errors.Wrap(err, "setting lower bounds")
	}
	if err := opt.SetUpperBounds(p.Upper); err != nil {
		return nil, errors.Wrap(err, "setting upper bounds")
	}

	evals := 0
	last := make([]float64, p.NumVars)
	copy(last, p.Guess)

	objective := func(x, gradient []float64) float64 {
		evals++
		copy(last, x)
		if len(gradient) > 0 {
			return p.Objective(x, gradient)
		}
		return p.Objective(x, nil)
	}
	if err := opt.SetMinObjective(objective); err != nil {
		return nil, errors.Wrap(err, "setting objective")
	}

	for _, b := range p.Equality {
		if err := opt.AddEqualityMConstraint(s.differentiated(b, p.NumVars), tolerances(b.Dim, s.opts.ConstraintTolerance)); err != nil {
			return nil, errors.Wrapf(err, "adding equality block %q", b.Name)
		}
	}
	for _, b := range p.Inequality {
		if err := opt.AddInequalityMConstraint(s.differentiated(b, p.NumVars), tolerances(b.Dim, s.opts.ConstraintTolerance)); err != nil {
			return nil, errors.Wrapf(err, "adding inequality block %q", b.Name)
		}
	}

	if err := opt.SetMaxEval(s.opts.MaxEvaluations); err != nil {
		return nil, errors.Wrap(err, "setting evaluation cap")
	}
	if err := opt.SetXtolRel(s.opts.Tolerance); err != nil {
		return nil, errors.Wrap(err, "setting primal tolerance")
	}
	if err := opt.SetFtolRel(s.opts.AcceptableTolerance); err != nil {
		return nil, errors.Wrap(err, "setting objective tolerance")
	}

	guess := make([]float64, p.NumVars)
	copy(guess, p.Guess)
	x, objVal, optErr := opt.Optimize(guess)

	iterate := last
	if optErr == nil && len(x) == p.NumVars {
		iterate = x
	}
	out := make([]float64, p.NumVars)
	copy(out, iterate)

	violation := p.MaxViolation(out)
	if optErr != nil {
		objVal = p.Objective(out, nil)
	}
	return &Solution{
		X:            out,
		Objective:    objVal,
		Evaluations:  evals,
		MaxViolation: violation,
		Converged:    optErr == nil && evals < s.opts.MaxEvaluations && violation <= s.opts.AcceptableTolerance,
	}, nil
}

// differentiated wraps a block into an NLopt vector constraint, filling the
// row-major Jacobian by central differences when one is requested.
func (s *SLSQP) differentiated(b Block, numVars int) nlopt.Mfunc {
	jac := mat.NewDense(b.Dim, numVars, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	eval := func(y, x []float64) { b.Eval(y, x) }
	return func(result, x, gradient []float64) {
		b.Eval(result, x)
		if len(gradient) > 0 {
			fd.Jacobian(jac, eval, x, settings)
			copy(gradient, jac.RawMatrix().Data)
		}
	}
}

func tolerances(dim int, tol float64) []float64 {
	out := make([]float64, dim)
	for i := range out {
		out[i] = tol
	}
	return out
}
