package fcover

import (
	"gonum.org/v1/gonum/mat"
)

const nnlsTol = 1e-10

// nnls solves min ||Ax - b|| subject to x >= 0 by Lawson-Hanson active set
// iteration. The systems here are tiny (six rows, three unknowns), so the
// repeated least-squares solves are cheap.
func nnls(a *mat.Dense, b *mat.VecDense) []float64 {
	m, n := a.Dims()

	x := make([]float64, n)
	passive := make([]bool, n)

	resid := mat.NewVecDense(m, nil)
	w := mat.NewVecDense(n, nil)

	for iter := 0; iter < 3*n; iter++ {
		// gradient of the residual at the current x
		ax := mat.NewVecDense(m, nil)
		ax.MulVec(a, mat.NewVecDense(n, x))
		resid.SubVec(b, ax)
		w.MulVec(a.T(), resid)

		// most promising inactive variable
		best, bestW := -1, nnlsTol
		for j := 0; j < n; j++ {
			if !passive[j] && w.AtVec(j) > bestW {
				best, bestW = j, w.AtVec(j)
			}
		}
		if best < 0 {
			break
		}

		passive[best] = true

		for {
			z, cols := solvePassive(a, b, passive)

			if allPositive(z) {
				for i, j := range cols {
					x[j] = z[i]
				}
				for j := 0; j < n; j++ {
					if !passive[j] {
						x[j] = 0
					}
				}
				break
			}

			// step toward z only as far as feasibility allows, dropping
			// variables that hit zero
			alpha := 1.0
			for i, j := range cols {
				if z[i] <= 0 && x[j]-z[i] > nnlsTol {
					if r := x[j] / (x[j] - z[i]); r < alpha {
						alpha = r
					}
				}
			}

			for i, j := range cols {
				x[j] += alpha * (z[i] - x[j])
				if x[j] <= nnlsTol {
					x[j] = 0
					passive[j] = false
				}
			}

			if nonePassive(passive) {
				break
			}
		}
	}

	return x
}

func solvePassive(a *mat.Dense, b *mat.VecDense, passive []bool) ([]float64, []int) {
	m, n := a.Dims()

	var cols []int
	for j := 0; j < n; j++ {
		if passive[j] {
			cols = append(cols, j)
		}
	}

	if len(cols) == 0 {
		return nil, nil
	}

	sub := mat.NewDense(m, len(cols), nil)
	col := make([]float64, m)
	for i, j := range cols {
		mat.Col(col, j, a)
		sub.SetCol(i, col)
	}

	var z mat.VecDense
	if err := z.SolveVec(sub, b); err != nil {
		// degenerate subproblem: fall back to zeros, caller drops the set
		return make([]float64, len(cols)), cols
	}

	out := make([]float64, len(cols))
	for i := range cols {
		out[i] = z.AtVec(i)
	}

	return out, cols
}

func allPositive(z []float64) bool {
	for _, v := range z {
		if v <= nnlsTol {
			return false
		}
	}

	return len(z) > 0
}

func nonePassive(passive []bool) bool {
	for _, p := range passive {
		if p {
			return false
		}
	}

	return true
}
