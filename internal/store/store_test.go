package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/cardpricer/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs", "cardpricer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReport(id string, at time.Time) *model.Report {
	stats := model.NewRejectionStats()
	stats.Total = 3
	stats.Accepted = 2
	stats.Record(model.Rejection{Name: "Fireball", Reason: model.RejectUnsupportedType})

	return &model.Report{
		RunID:       id,
		Source:      "testdata/AllSets.json",
		GeneratedAt: at,
		Strict:      true,
		ChargeMode:  model.ChargeAttack,
		PriceColumn: "price",
		Refitted:    true,
		Stats:       stats,
		Rejections:  []model.Rejection{{Name: "Fireball", Reason: model.RejectUnsupportedType}},
		Coefficients: []model.Coefficient{
			{Column: "intrinsic", Weight: 1.5},
			{Column: "attack", Weight: 0.75},
			{Column: "health", Weight: 0.5},
		},
		Cards: []model.PricedCard{
			{Name: "Bloodfen Raptor", PlayerClass: "", Cost: 2, Price: 2.25, Diff: 0.25, Value: 0.5},
			{Name: "Wolfrider", Cost: 3, Price: 2.75, Diff: -0.25, Value: -0.17},
		},
		Principles: model.DefaultPrinciples(),
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveReport(ctx, testReport("run-1", at)))

	coeffs, err := s.LoadCoefficients(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []model.Coefficient{
		{Column: "intrinsic", Weight: 1.5},
		{Column: "attack", Weight: 0.75},
		{Column: "health", Weight: 0.5},
	}, coeffs)

	report, err := s.LoadReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "testdata/AllSets.json", report.Source)
	assert.Len(t, report.Cards, 2)
	assert.Equal(t, 1, report.Stats.Rejected())
	assert.True(t, report.GeneratedAt.Equal(at))
}

func TestStore_ListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveReport(ctx, testReport("older", base)))
	require.NoError(t, s.SaveReport(ctx, testReport("newer", base.Add(time.Hour))))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)
	assert.Equal(t, "older", runs[1].ID)
	assert.True(t, runs[0].Strict)
	assert.True(t, runs[0].Refitted)
	assert.Equal(t, model.ChargeAttack, runs[0].ChargeMode)
	assert.Equal(t, 3, runs[0].Total)
	assert.Equal(t, 2, runs[0].Accepted)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", latest)
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LoadCoefficients(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LoadReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LatestRunID(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_DuplicateRunRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveReport(ctx, testReport("run-1", at)))
	assert.Error(t, s.SaveReport(ctx, testReport("run-1", at)))

	coeffs, err := s.LoadCoefficients(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, coeffs, 3)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardpricer.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveReport(ctx, testReport("run-1", time.Now().UTC())))
	require.NoError(t, s.Close())

	// migrations are idempotent and data survives
	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
