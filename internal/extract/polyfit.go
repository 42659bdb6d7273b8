package extract

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Fit computes the least-squares polynomial of the given degree
// through the points, returning coefficients from the constant term
// up. The fit is underdetermined (and rejected) with fewer than
// degree+1 distinct points.
func Fit(xs, ys []float64, degree int) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("polyfit: %d xs vs %d ys", len(xs), len(ys))
	}
	distinct := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		distinct[x] = struct{}{}
	}
	if len(distinct) < degree+1 {
		return nil, fmt.Errorf("polyfit: degree %d needs %d distinct points, have %d",
			degree, degree+1, len(distinct))
	}

	// Vandermonde design matrix, solved by QR.
	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		pow := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, pow)
			pow *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(a)
	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return nil, fmt.Errorf("polyfit: solve: %w", err)
	}

	coefs := make([]float64, degree+1)
	for j := 0; j <= degree; j++ {
		coefs[j] = c.AtVec(j)
	}
	return coefs, nil
}

// Eval evaluates a polynomial (constant term first) at x.
func Eval(coefs []float64, x float64) float64 {
	y := 0.0
	for j := len(coefs) - 1; j >= 0; j-- {
		y = y*x + coefs[j]
	}
	return y
}
