package price

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ppiankov/cardpricer/internal/model"
	"github.com/ppiankov/cardpricer/internal/table"
)

func cards(rows ...model.ProcessedCard) []model.ProcessedCard { return rows }

func pc(name string, cost int, f model.Features) model.ProcessedCard {
	return model.ProcessedCard{Card: model.Card{Name: name, Cost: cost}, Features: f}
}

func TestFit_SingleIntrinsicRow(t *testing.T) {
	for _, cost := range []int{0, 1, 4, 10} {
		tbl := table.Build(cards(pc("x", cost, model.Features{})), nil)
		require.Equal(t, []string{"intrinsic"}, tbl.Columns)

		res, err := Price(tbl, nil)
		require.NoError(t, err)

		w, ok := res.Coefficients.Weight("intrinsic")
		require.True(t, ok)
		assert.InDelta(t, float64(2*cost+1), w, 1e-12)
		assert.InDelta(t, float64(cost), res.Prices[0], 1e-12)
		assert.True(t, res.Refitted)
	}
}

func TestFit_ExactLinearData(t *testing.T) {
	// cost = attack + health - 1  =>  target = 2*attack + 2*health - 1
	tbl := table.Build(cards(
		pc("a", 1, model.Features{"attack": 1, "health": 1}),
		pc("b", 2, model.Features{"attack": 1, "health": 2}),
		pc("c", 4, model.Features{"attack": 3, "health": 2}),
		pc("d", 6, model.Features{"attack": 4, "health": 3}),
	), nil)

	coeffs, err := Fit(tbl)
	require.NoError(t, err)

	intrinsic, _ := coeffs.Weight("intrinsic")
	attack, _ := coeffs.Weight("attack")
	health, _ := coeffs.Weight("health")
	assert.InDelta(t, -1, intrinsic, 1e-9)
	assert.InDelta(t, 2, attack, 1e-9)
	assert.InDelta(t, 2, health, 1e-9)

	prices, err := Apply(tbl, coeffs)
	require.NoError(t, err)
	for i, c := range tbl.Costs() {
		assert.InDelta(t, c, prices[i], 1e-9)
	}
}

func TestFit_RankDeficientMinimumNorm(t *testing.T) {
	// windfury duplicates attack; minimum norm splits the weight evenly
	tbl := table.Build(cards(
		pc("a", 1, model.Features{"attack": 1, "windfury": 1}),
		pc("b", 3, model.Features{"attack": 2, "windfury": 2}),
		pc("c", 5, model.Features{"attack": 3, "windfury": 3}),
	), nil)

	coeffs, err := Fit(tbl)
	require.NoError(t, err)

	attack, _ := coeffs.Weight("attack")
	windfury, _ := coeffs.Weight("windfury")
	assert.InDelta(t, attack, windfury, 1e-9)
	assert.InDelta(t, 4, attack+windfury, 1e-9)
}

func TestFit_Empty(t *testing.T) {
	_, err := Fit(table.Build(nil, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Price(table.Build(nil, nil), nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestApply_Mismatch(t *testing.T) {
	tbl := table.Build(cards(pc("a", 1, model.Features{"attack": 1})), nil)

	_, err := Apply(tbl, &Coefficients{Weights: []float64{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Apply(tbl, &Coefficients{Columns: []string{"intrinsic", "health"}, Weights: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Apply(tbl, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Apply(table.Build(nil, nil), &Coefficients{Weights: []float64{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestApply_MissingFeatureCountsAsZero(t *testing.T) {
	coeffs := &Coefficients{Columns: []string{"intrinsic", "windfury"}, Weights: []float64{3, 10}}
	tbl := table.Build(cards(pc("a", 1, model.Features{"attack": 2})), []string{"windfury"})

	prices, err := Apply(tbl, coeffs)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, prices)
}

func TestPrice_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "rows")
		rows := make([]model.ProcessedCard, n)
		for i := range rows {
			f := model.Features{
				"attack": float64(rapid.IntRange(0, 12).Draw(t, "attack")),
				"health": float64(rapid.IntRange(1, 12).Draw(t, "health")),
			}
			if rapid.Bool().Draw(t, "taunt") {
				f["taunt"] = f["health"]
			}
			rows[i] = pc("card", rapid.IntRange(0, 10).Draw(t, "cost"), f)
		}
		tbl := table.Build(rows, nil)

		fitted, err := Price(tbl, nil)
		if err != nil {
			t.Fatalf("fit: %v", err)
		}
		applied, err := Price(tbl, fitted.Coefficients)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if applied.Refitted {
			t.Fatalf("expected supplied coefficients to be reused")
		}
		for i := range fitted.Prices {
			if fitted.Prices[i] != applied.Prices[i] {
				t.Fatalf("row %d: fit price %v != apply price %v", i, fitted.Prices[i], applied.Prices[i])
			}
		}
	})
}

func TestRank(t *testing.T) {
	tbl := table.Build(cards(
		pc("cheap", 1, model.Features{}),
		pc("pricey", 3, model.Features{}),
	), nil)
	res := &Result{
		Coefficients: &Coefficients{Columns: []string{"intrinsic"}, Weights: []float64{3}},
		Prices:       []float64{2, 2},
	}

	ranked := Rank(tbl, res)
	require.Len(t, ranked, 2)

	assert.Equal(t, "cheap", ranked[0].Name)
	assert.Equal(t, 1.0, ranked[0].Diff)
	assert.Equal(t, -0.5, ranked[0].Value) // 1 / (1 - 3)

	assert.Equal(t, "pricey", ranked[1].Name)
	assert.Equal(t, -1.0, ranked[1].Diff)
	assert.Equal(t, 0.0, ranked[1].Value) // cost == intrinsic
}

func TestCoefficientsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coeffs.yaml")
	in := &Coefficients{Columns: []string{"intrinsic", "attack"}, Weights: []float64{1.5, -0.25}}

	require.NoError(t, SaveCoefficients(path, in))
	out, err := LoadCoefficients(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	assert.Equal(t, []model.Coefficient{{Column: "intrinsic", Weight: 1.5}, {Column: "attack", Weight: -0.25}}, out.Entries())
	assert.Equal(t, in, FromEntries(out.Entries()))
}

func TestTransforms(t *testing.T) {
	assert.Equal(t, 7.0, Target(3))
	assert.Equal(t, 3.0, Inverse(7))
}
