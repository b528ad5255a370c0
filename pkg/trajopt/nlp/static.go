package nlp

// Static is a Solver that returns a fixed iterate without optimizing. It
// exists so the trajectory optimizer can be exercised without a native NLopt
// installation: tests choose the iterate and the convergence verdict.
type Static struct {
	// X is the iterate to return; nil means the problem's initial guess.
	X []float64
	// Converged is reported verbatim.
	Converged bool
	// Err, when set, is returned instead of a solution.
	Err error
	// Panic, when true, panics inside Solve to exercise caller recovery.
	Panic bool
}

var _ Solver = (*Static)(nil)

func (s *Static) Solve(p *Problem) (*Solution, error) {
	if s.Panic {
		panic("nlp: static solver fault")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	iterate := s.X
	if iterate == nil {
		iterate = p.Guess
	}
	out := make([]float64, len(iterate))
	copy(out, iterate)
	return &Solution{
		X:            out,
		Objective:    p.Objective(out, nil),
		Evaluations:  1,
		MaxViolation: p.MaxViolation(out),
		Converged:    s.Converged,
	}, nil
}
