package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RightPseudoInverse returns Jᵗ(JJᵗ + λ²I)⁻¹ for a wide matrix J.
// With damping λ = 0 this is the exact right pseudo-inverse and a singular
// JJᵗ is reported as ErrSingularConfiguration.
func RightPseudoInverse(j mat.Matrix, damping float64) (*mat.Dense, error) {
	rows, _ := j.Dims()

	var jjt mat.Dense
	jjt.Mul(j, j.T())
	if damping > 0 {
		d2 := damping * damping
		for i := 0; i < rows; i++ {
			jjt.Set(i, i, jjt.At(i, i)+d2)
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(&jjt); err != nil {
		return nil, fmt.Errorf("%w: JJᵗ not invertible: %v", ErrSingularConfiguration, err)
	}

	var out mat.Dense
	out.Mul(j.T(), &inv)
	return &out, nil
}

// PseudoInverse returns the Moore-Penrose pseudo-inverse of any matrix via
// SVD. Singular values below max(r, c)·ε·σmax are treated as zero, so rank
// deficient matrices are handled rather than rejected.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrSingularConfiguration)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	r, c := a.Dims()
	tol := 0.0
	if len(values) > 0 {
		tol = float64(max(r, c)) * values[0] * 2.220446049250313e-16
	}

	inv := mat.NewDiagDense(len(values), nil)
	for i, s := range values {
		if s > tol && !math.IsInf(1/s, 0) {
			inv.SetDiag(i, 1/s)
		}
	}

	// A⁺ = V Σ⁺ Uᵗ
	var vs, out mat.Dense
	vs.Mul(&v, inv)
	out.Mul(&vs, u.T())
	return &out, nil
}

// NullSpaceProjector returns I − J⁺J, the projector onto the null space of
// the primary task.
func NullSpaceProjector(j mat.Matrix, pinv mat.Matrix) *mat.Dense {
	_, n := j.Dims()

	var jpj mat.Dense
	jpj.Mul(pinv, j)

	p := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		p.Set(i, i, 1)
	}
	p.Sub(p, &jpj)
	return p
}
