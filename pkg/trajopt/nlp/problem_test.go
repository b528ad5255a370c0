package nlp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadratic(center []float64) Objective {
	return func(x, grad []float64) float64 {
		total := 0.0
		for i := range x {
			d := x[i] - center[i]
			total += d * d
			if grad != nil {
				grad[i] = 2 * d
			}
		}
		return total
	}
}

func boxProblem() *Problem {
	return &Problem{
		NumVars:   2,
		Lower:     []float64{math.Inf(-1), math.Inf(-1)},
		Upper:     []float64{math.Inf(1), math.Inf(1)},
		Objective: quadratic([]float64{1, 2}),
		Guess:     []float64{0, 0},
	}
}

func TestProblemValidate(t *testing.T) {
	require.NoError(t, boxProblem().Validate())

	t.Run("missing objective", func(t *testing.T) {
		p := boxProblem()
		p.Objective = nil
		assert.ErrorIs(t, p.Validate(), ErrNoObjective)
	})

	t.Run("bounds length mismatch", func(t *testing.T) {
		p := boxProblem()
		p.Lower = []float64{0}
		assert.ErrorIs(t, p.Validate(), ErrDimensionMismatch)
	})

	t.Run("guess length mismatch", func(t *testing.T) {
		p := boxProblem()
		p.Guess = []float64{0, 0, 0}
		assert.ErrorIs(t, p.Validate(), ErrDimensionMismatch)
	})

	t.Run("bad block", func(t *testing.T) {
		p := boxProblem()
		p.Equality = []Block{{Name: "broken", Dim: 0}}
		assert.ErrorIs(t, p.Validate(), ErrDimensionMismatch)
	})
}

func TestMaxViolation(t *testing.T) {
	p := boxProblem()
	p.Equality = []Block{{
		Name: "sum",
		Dim:  1,
		Eval: func(dst, x []float64) { dst[0] = x[0] + x[1] - 1 },
	}}
	p.Inequality = []Block{{
		Name: "cap",
		Dim:  2,
		Eval: func(dst, x []float64) {
			dst[0] = x[0] - 2
			dst[1] = x[1] - 2
		},
	}}

	// Satisfied inequality contributes nothing, equality contributes |h|.
	assert.InDelta(t, 1.0, p.MaxViolation([]float64{0, 0}), 1e-12)
	assert.InDelta(t, 0.0, p.MaxViolation([]float64{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 2.0, p.MaxViolation([]float64{4, -3}), 1e-12)
}

func TestStaticSolver(t *testing.T) {
	t.Run("returns the guess by default", func(t *testing.T) {
		s := &Static{Converged: true}
		sol, err := s.Solve(boxProblem())
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, sol.X)
		assert.True(t, sol.Converged)
		assert.Equal(t, 1, sol.Evaluations)
		assert.InDelta(t, 5.0, sol.Objective, 1e-12)
	})

	t.Run("returns a fixed iterate", func(t *testing.T) {
		s := &Static{X: []float64{1, 2}, Converged: true}
		sol, err := s.Solve(boxProblem())
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2}, sol.X)
		assert.InDelta(t, 0.0, sol.Objective, 1e-12)
	})

	t.Run("copies the iterate", func(t *testing.T) {
		iterate := []float64{1, 2}
		s := &Static{X: iterate, Converged: true}
		sol, err := s.Solve(boxProblem())
		require.NoError(t, err)
		sol.X[0] = 99
		assert.Equal(t, 1.0, iterate[0])
	})

	t.Run("propagates errors", func(t *testing.T) {
		s := &Static{Err: assert.AnError}
		_, err := s.Solve(boxProblem())
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestSLSQPOptionDefaults(t *testing.T) {
	s := NewSLSQP(SLSQPOptions{})
	assert.Equal(t, DefaultSLSQPOptions(), s.opts)

	s = NewSLSQP(SLSQPOptions{MaxEvaluations: 50})
	assert.Equal(t, 50, s.opts.MaxEvaluations)
	assert.Equal(t, DefaultSLSQPOptions().Tolerance, s.opts.Tolerance)
}

func TestDifferentiatedJacobian(t *testing.T) {
	s := NewSLSQP(SLSQPOptions{})
	b := Block{
		Name: "quad",
		Dim:  2,
		Eval: func(dst, x []float64) {
			dst[0] = x[0]*x[0] + x[1] - 3
			dst[1] = math.Sin(x[0])
		},
	}
	fn := s.differentiated(b, 2)

	x := []float64{1.5, -2}
	result := make([]float64, 2)
	gradient := make([]float64, 2*2)
	fn(result, x, gradient)

	assert.InDelta(t, 1.5*1.5-2-3, result[0], 1e-12)
	// Row-major Jacobian: d r0/dx = [2 x0, 1], d r1/dx = [cos x0, 0].
	assert.InDelta(t, 3.0, gradient[0], 1e-6)
	assert.InDelta(t, 1.0, gradient[1], 1e-6)
	assert.InDelta(t, math.Cos(1.5), gradient[2], 1e-6)
	assert.InDelta(t, 0.0, gradient[3], 1e-6)
}
