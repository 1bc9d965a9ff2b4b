package analytics

import (
	"sort"

	"github.com/avlasov/spendlens/internal/dataset"
)

// NoService is the sentinel reported when no service can be named as the
// highest or lowest spender: the table is empty, or the winning group has
// an empty service name.
const NoService = "N/A"

// KPIs is the headline spend summary. Totals are truncated toward zero to
// whole currency units where noted; service_totals keeps full precision.
type KPIs struct {
	TotalSpend     int64              `json:"total_spend"`
	HighestService string             `json:"highest_service"`
	LowestService  string             `json:"lowest_service"`
	MonthlyTrend   []int64            `json:"monthly_trend"`
	ServiceTotals  map[string]float64 `json:"service_totals"`
}

// ComputeKPIs aggregates the table into KPIs. An empty table yields zero
// totals, empty collections and the NoService sentinels. Ties for highest
// or lowest resolve to the lexicographically first service.
func ComputeKPIs(t *dataset.Table) KPIs {
	kpis := KPIs{
		HighestService: NoService,
		LowestService:  NoService,
		MonthlyTrend:   []int64{},
		ServiceTotals:  map[string]float64{},
	}
	if len(t.Rows) == 0 {
		return kpis
	}

	var total float64
	for _, r := range t.Rows {
		total += r.Cost
	}
	kpis.TotalSpend = int64(total)

	byService := BuildPivot(t, func(r dataset.Row) string { return r.Service })
	var highest, lowest string
	var highestTotal, lowestTotal float64
	for i, svc := range byService.Keys {
		svcTotal := byService.Total(svc)
		kpis.ServiceTotals[svc] = svcTotal
		if i == 0 || svcTotal > highestTotal {
			highest, highestTotal = svc, svcTotal
		}
		if i == 0 || svcTotal < lowestTotal {
			lowest, lowestTotal = svc, svcTotal
		}
	}
	if highest != "" {
		kpis.HighestService = highest
	}
	if lowest != "" {
		kpis.LowestService = lowest
	}

	months, sums := monthlySums(t)
	for _, m := range months {
		kpis.MonthlyTrend = append(kpis.MonthlyTrend, int64(sums[m]))
	}
	return kpis
}

// MonthlyTotals returns per-month summed cost keyed by month, truncated to
// whole units.
func MonthlyTotals(t *dataset.Table) map[string]int64 {
	months, sums := monthlySums(t)
	out := make(map[string]int64, len(months))
	for _, m := range months {
		out[m] = int64(sums[m])
	}
	return out
}

// ServiceTotalsTruncated returns per-service summed cost truncated to whole
// units, for displays that want integer figures.
func ServiceTotalsTruncated(t *dataset.Table) map[string]int64 {
	byService := BuildPivot(t, func(r dataset.Row) string { return r.Service })
	out := make(map[string]int64, len(byService.Keys))
	for _, svc := range byService.Keys {
		out[svc] = int64(byService.Total(svc))
	}
	return out
}

func monthlySums(t *dataset.Table) ([]string, map[string]float64) {
	sums := make(map[string]float64)
	for _, r := range t.Rows {
		sums[r.Month] += r.Cost
	}
	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Strings(months)
	return months, sums
}
