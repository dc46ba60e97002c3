package price

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/cardpricer/internal/model"
	"github.com/ppiankov/cardpricer/internal/table"
	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned when the table is empty or does not
// agree with the coefficient vector
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Coefficients is one weight per predictor column, intrinsic first
type Coefficients struct {
	Columns []string  `json:"columns" yaml:"columns"`
	Weights []float64 `json:"weights" yaml:"weights"`
}

// Weight returns the weight of a column, false when absent
func (c *Coefficients) Weight(column string) (float64, bool) {
	for i, name := range c.Columns {
		if name == column && i < len(c.Weights) {
			return c.Weights[i], true
		}
	}
	return 0, false
}

// Entries returns the coefficients as report entries
func (c *Coefficients) Entries() []model.Coefficient {
	out := make([]model.Coefficient, len(c.Weights))
	for i, w := range c.Weights {
		out[i] = model.Coefficient{Column: c.Columns[i], Weight: w}
	}
	return out
}

// FromEntries rebuilds coefficients from report entries
func FromEntries(entries []model.Coefficient) *Coefficients {
	c := &Coefficients{
		Columns: make([]string, len(entries)),
		Weights: make([]float64, len(entries)),
	}
	for i, e := range entries {
		c.Columns[i] = e.Column
		c.Weights[i] = e.Weight
	}
	return c
}

// Target maps a card cost to the regression target
func Target(cost float64) float64 {
	return 2*cost + 1
}

// Inverse maps a raw model output back to a price
func Inverse(raw float64) float64 {
	return (raw - 1) / 2
}

// Fit solves the least-squares problem table * w = 2 * cost + 1.
//
// The solve goes through a thin SVD truncated at the numerical rank, so a
// singular or rank-deficient table yields the minimum-norm solution.
func Fit(t *table.Table) (*Coefficients, error) {
	m, n := t.Len(), t.Width()
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("%w: empty feature table (%d rows, %d columns)", ErrDimensionMismatch, m, n)
	}

	a := dense(t)
	costs := t.Costs()
	target := make([]float64, m)
	for i, c := range costs {
		target[i] = Target(c)
	}
	b := mat.NewVecDense(m, target)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd factorization failed")
	}

	rank := svd.Rank(math.Max(rankTolerance, epsilon*float64(max(m, n))))
	if rank == 0 {
		return nil, fmt.Errorf("%w: feature table has rank 0", ErrDimensionMismatch)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)

	weights := make([]float64, n)
	for j := range weights {
		weights[j] = x.AtVec(j)
	}

	return &Coefficients{
		Columns: append([]string(nil), t.Columns...),
		Weights: weights,
	}, nil
}

// Apply prices every row with previously computed coefficients
func Apply(t *table.Table, c *Coefficients) ([]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no coefficients", ErrDimensionMismatch)
	}
	m, n := t.Len(), t.Width()
	if m == 0 {
		return nil, fmt.Errorf("%w: empty feature table", ErrDimensionMismatch)
	}
	if len(c.Weights) != n {
		return nil, fmt.Errorf("%w: %d coefficients for %d columns", ErrDimensionMismatch, len(c.Weights), n)
	}
	if len(c.Columns) > 0 {
		if len(c.Columns) != n {
			return nil, fmt.Errorf("%w: %d coefficient columns for %d table columns", ErrDimensionMismatch, len(c.Columns), n)
		}
		for j, name := range c.Columns {
			if t.Columns[j] != name {
				return nil, fmt.Errorf("%w: column %d is %q, coefficients expect %q", ErrDimensionMismatch, j, t.Columns[j], name)
			}
		}
	}

	var raw mat.VecDense
	raw.MulVec(dense(t), mat.NewVecDense(n, append([]float64(nil), c.Weights...)))

	prices := make([]float64, m)
	for i := range prices {
		prices[i] = Inverse(raw.AtVec(i))
	}
	return prices, nil
}

// Result is the outcome of a pricing run
type Result struct {
	Coefficients *Coefficients
	Prices       []float64
	Refitted     bool
}

// Price fits coefficients when none are given, then applies them
func Price(t *table.Table, coeffs *Coefficients) (*Result, error) {
	refitted := false
	if coeffs == nil {
		fitted, err := Fit(t)
		if err != nil {
			return nil, fmt.Errorf("fit: %w", err)
		}
		coeffs = fitted
		refitted = true
	}

	prices, err := Apply(t, coeffs)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	return &Result{
		Coefficients: coeffs,
		Prices:       prices,
		Refitted:     refitted,
	}, nil
}

// Rank builds the value report sorted by diff, most under-costed first
func Rank(t *table.Table, r *Result) []model.PricedCard {
	intrinsic, _ := r.Coefficients.Weight(model.FeatureIntrinsic)

	out := make([]model.PricedCard, len(t.Cards))
	for i, c := range t.Cards {
		cost := float64(c.Card.Cost)
		diff := r.Prices[i] - cost

		// value = diff / (cost - intrinsic)
		value := 0.0
		if denom := cost - intrinsic; denom != 0 {
			value = diff / denom
		}

		out[i] = model.PricedCard{
			Name:        c.Card.Name,
			PlayerClass: c.Card.PlayerClass,
			Cost:        c.Card.Cost,
			Price:       r.Prices[i],
			Diff:        diff,
			Value:       value,
			Residue:     c.Residue,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Diff > out[j].Diff
	})
	return out
}

// Singular values below rankTolerance times the largest one count as zero
const rankTolerance = 1e-10

var epsilon = math.Nextafter(1, 2) - 1

// dense copies the table rows into a matrix
func dense(t *table.Table) *mat.Dense {
	m, n := t.Len(), t.Width()
	data := make([]float64, 0, m*n)
	for _, row := range t.Rows {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data)
}
