// Package table assembles processed cards into a uniform feature matrix.
package table

import (
	"math"
	"sort"

	"github.com/ppiankov/cardpricer/internal/model"
)

// ExcludedColumns never act as predictors
var ExcludedColumns = []string{
	model.FeatureIntrinsic, "name", "text", "cost", "playerClass", "text_mechanics", "mechanics", "type",
}

// Table is a dense feature matrix with one row per card.
// Columns[0] is always the intrinsic bias column.
type Table struct {
	Columns []string
	Rows    [][]float64
	Cards   []model.ProcessedCard
}

// Build assembles cards into a table. With no explicit columns the
// predictor set is the sorted union of all feature names; missing and
// not-a-number cells become 0.
func Build(cards []model.ProcessedCard, columns []string) *Table {
	if len(columns) == 0 {
		columns = unionColumns(cards)
	} else {
		columns = filterExcluded(columns)
	}
	columns = append([]string{model.FeatureIntrinsic}, columns...)

	rows := make([][]float64, len(cards))
	for i, card := range cards {
		row := make([]float64, len(columns))
		row[0] = 1
		for j := 1; j < len(columns); j++ {
			v := card.Features.Get(columns[j])
			if math.IsNaN(v) {
				v = 0
			}
			row[j] = v
		}
		rows[i] = row
	}

	return &Table{
		Columns: columns,
		Rows:    rows,
		Cards:   cards,
	}
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns
func (t *Table) Width() int { return len(t.Columns) }

// Costs returns the cost of every row in order
func (t *Table) Costs() []float64 {
	costs := make([]float64, len(t.Cards))
	for i, c := range t.Cards {
		costs[i] = float64(c.Card.Cost)
	}
	return costs
}

// Column returns the values of a named column, false when absent
func (t *Table) Column(name string) ([]float64, bool) {
	idx := -1
	for j, c := range t.Columns {
		if c == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// unionColumns returns every feature name seen on any card, sorted
func unionColumns(cards []model.ProcessedCard) []string {
	seen := make(map[string]bool)
	for _, c := range cards {
		for name := range c.Features {
			seen[name] = true
		}
	}
	for _, name := range ExcludedColumns {
		delete(seen, name)
	}

	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}

// filterExcluded drops excluded and duplicate names, keeping order
func filterExcluded(columns []string) []string {
	skip := make(map[string]bool, len(ExcludedColumns))
	for _, name := range ExcludedColumns {
		skip[name] = true
	}
	out := make([]string, 0, len(columns))
	for _, name := range columns {
		if skip[name] {
			continue
		}
		skip[name] = true
		out = append(out, name)
	}
	return out
}
