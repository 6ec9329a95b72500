package bandit

import (
	"math"

	"github.com/lexiloop/adaptengine/internal/domain"
)

// This file hand-rolls the small amount of dense linear algebra the LinUCB
// learner needs: Cholesky decomposition, a rank-1 update of an existing
// factor, and forward/back substitution, all on flat row-major float64
// slices.

// cholesky computes the lower-triangular Cholesky factor L of the
// symmetric positive-definite d×d matrix a (row-major), such that
// a = L * Lᵀ. Diagonal entries are floored at domain.CholeskyFloor to keep L
// invertible under floating-point drift. Returns false if a diagonal pivot
// is negative even after flooring (a is not PSD).
func cholesky(a []float64, d int) ([]float64, bool) {
	l := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i*d+j]
			for k := 0; k < j; k++ {
				sum -= l[i*d+k] * l[j*d+k]
			}
			if i == j {
				if sum < domain.CholeskyFloor {
					sum = domain.CholeskyFloor
				}
				l[i*d+i] = math.Sqrt(sum)
			} else {
				if l[j*d+j] == 0 {
					return nil, false
				}
				l[i*d+j] = sum / l[j*d+j]
			}
		}
	}
	return l, true
}

// choleskyRank1Update applies a rank-1 update L' such that
// L'*L'ᵀ = L*Lᵀ + sign*x*xᵀ, in place, using the standard Givens-rotation
// free update (Seeger 2004). sign is +1 for an update, -1 for a downdate.
// Returns false if a downdate would make the factor indefinite, signalling
// the caller should fall back to a full recompute.
func choleskyRank1Update(l []float64, d int, x []float64, sign float64) bool {
	work := make([]float64, d)
	copy(work, x)

	for k := 0; k < d; k++ {
		diag := l[k*d+k]
		r2 := diag*diag + sign*work[k]*work[k]
		if r2 < domain.CholeskyFloor {
			return false
		}
		r := math.Sqrt(r2)
		c := r / diag
		s := work[k] / diag
		l[k*d+k] = r

		for i := k + 1; i < d; i++ {
			lik := l[i*d+k]
			l[i*d+k] = (lik + sign*s*work[i]) / c
			work[i] = c*work[i] - s*l[i*d+k]
		}
	}
	return true
}

// forwardSubstitute solves L*y = b for y, where l is lower-triangular d×d.
func forwardSubstitute(l []float64, d int, b []float64) []float64 {
	y := make([]float64, d)
	for i := 0; i < d; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i*d+k] * y[k]
		}
		y[i] = sum / l[i*d+i]
	}
	return y
}

// backSubstitute solves Lᵀ*x = y for x, where l is the same lower-triangular
// factor used by forwardSubstitute (its transpose is used implicitly).
func backSubstitute(l []float64, d int, y []float64) []float64 {
	x := make([]float64, d)
	for i := d - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < d; k++ {
			sum -= l[k*d+i] * x[k]
		}
		x[i] = sum / l[i*d+i]
	}
	return x
}

// solve returns x such that L*Lᵀ*x = b.
func solve(l []float64, d int, b []float64) []float64 {
	y := forwardSubstitute(l, d, b)
	return backSubstitute(l, d, y)
}

// quadFormNorm returns ||L^{-1} * x||, the confidence-width term in the
// UCB score: ucb = theta.x + alpha*||L^{-1}.x||.
func quadFormNorm(l []float64, d int, x []float64) float64 {
	z := forwardSubstitute(l, d, x)
	var sumSq float64
	for _, v := range z {
		sumSq += v * v
	}
	return math.Sqrt(sumSq)
}
