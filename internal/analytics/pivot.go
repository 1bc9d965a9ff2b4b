// Package analytics provides pure, read-only computations over a normalized
// spend table: KPI aggregation, spend-shift flags and idle-resource findings.
// Nothing here mutates the table or performs I/O.
package analytics

import (
	"math"
	"sort"

	"github.com/avlasov/spendlens/internal/dataset"
)

// Pivot is a cost cross-tab: total cost per (key, month) pair, with absent
// combinations reading as 0. Keys and Months are sorted ascending.
type Pivot struct {
	Keys   []string
	Months []string

	cells map[string]map[string]float64
}

// BuildPivot aggregates the table by keyFn × month. Every distinct key and
// month in the input becomes an axis value, including empty strings.
func BuildPivot(t *dataset.Table, keyFn func(dataset.Row) string) *Pivot {
	p := &Pivot{cells: make(map[string]map[string]float64)}

	monthSet := make(map[string]struct{})
	for _, r := range t.Rows {
		key := keyFn(r)
		byMonth, ok := p.cells[key]
		if !ok {
			byMonth = make(map[string]float64)
			p.cells[key] = byMonth
			p.Keys = append(p.Keys, key)
		}
		byMonth[r.Month] += r.Cost
		monthSet[r.Month] = struct{}{}
	}

	for m := range monthSet {
		p.Months = append(p.Months, m)
	}
	sort.Strings(p.Keys)
	sort.Strings(p.Months)
	return p
}

// Cost returns the aggregated cost for (key, month), 0 when absent.
func (p *Pivot) Cost(key, month string) float64 {
	return p.cells[key][month]
}

// Total returns the all-months total for a key.
func (p *Pivot) Total(key string) float64 {
	var sum float64
	for _, v := range p.cells[key] {
		sum += v
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
