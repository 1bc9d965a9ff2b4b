package analytics

import (
	"fmt"

	"github.com/avlasov/spendlens/internal/dataset"
)

// IdleOptions tunes idle-resource detection.
type IdleOptions struct {
	// IdleMonths is the size of the recent window that must be all-zero.
	IdleMonths int
	// MinMonthlySaving is the minimum prior-window average cost for a
	// resource to be worth reporting.
	MinMonthlySaving float64
}

// DefaultIdleOptions returns the standard detection parameters.
func DefaultIdleOptions() IdleOptions {
	return IdleOptions{IdleMonths: 2, MinMonthlySaving: 1.0}
}

// IdleFinding reports one resource with historical cost that has gone
// quiet. Owner, env and tags are best-effort context sampled from the first
// raw row carrying the resource id. HistorySample covers the recent window
// plus up to six prior months, keyed by month.
type IdleFinding struct {
	ResourceID             string             `json:"resource_id"`
	Owner                  string             `json:"owner"`
	Env                    string             `json:"env"`
	Tags                   string             `json:"tags"`
	LastMonthsZero         []string           `json:"last_months_zero"`
	PriorMonthsAvg         float64            `json:"prior_months_avg"`
	EstimatedMonthlySaving float64            `json:"estimated_monthly_saving"`
	HistorySample          map[string]float64 `json:"history_sample"`
}

// DetectIdleResources finds resources whose cost is exactly zero across the
// last IdleMonths months but with positive spend before that window. The
// estimated saving is the prior-window average, which must reach
// MinMonthlySaving for the resource to be flagged. Soft preconditions
// (empty table, no resource ids, too few months) return no findings plus an
// explanatory warning rather than an error.
func DetectIdleResources(t *dataset.Table, opts IdleOptions) ([]IdleFinding, []string) {
	if opts.IdleMonths < 1 {
		opts.IdleMonths = DefaultIdleOptions().IdleMonths
	}

	if len(t.Rows) == 0 {
		return nil, []string{"Empty table; no resources to analyze."}
	}

	// Rows with no resource id cannot be attributed and are left out.
	attributed := &dataset.Table{}
	for _, r := range t.Rows {
		if r.ResourceID != "" {
			attributed.Rows = append(attributed.Rows, r)
		}
	}
	if len(attributed.Rows) == 0 {
		return nil, []string{"No resource_id column present or all resource_id values are missing."}
	}

	pivot := BuildPivot(attributed, func(r dataset.Row) string { return r.ResourceID })
	if len(pivot.Months) < opts.IdleMonths+1 {
		return nil, []string{fmt.Sprintf("Not enough months of data to detect idle resources (need > %d).", opts.IdleMonths)}
	}

	recent := pivot.Months[len(pivot.Months)-opts.IdleMonths:]
	prior := pivot.Months[:len(pivot.Months)-opts.IdleMonths]
	if len(prior) == 0 {
		return nil, []string{fmt.Sprintf("No prior months available before the last %d months.", opts.IdleMonths)}
	}

	var findings []IdleFinding
	for _, resourceID := range pivot.Keys {
		if !allZero(pivot, resourceID, recent) {
			continue
		}

		var priorSum float64
		for _, m := range prior {
			priorSum += pivot.Cost(resourceID, m)
		}
		if priorSum <= 0 {
			// Never had cost; nothing to save.
			continue
		}
		priorAvg := priorSum / float64(len(prior))
		if priorAvg < opts.MinMonthlySaving {
			continue
		}

		finding := IdleFinding{
			ResourceID:             resourceID,
			LastMonthsZero:         append([]string(nil), recent...),
			PriorMonthsAvg:         round2(priorAvg),
			EstimatedMonthlySaving: round2(priorAvg),
			HistorySample:          historySample(pivot, resourceID, prior, opts.IdleMonths),
		}
		for _, r := range attributed.Rows {
			if r.ResourceID == resourceID {
				finding.Owner = r.RawOwner
				finding.Env = r.RawEnv
				finding.Tags = r.Tags
				break
			}
		}
		findings = append(findings, finding)
	}

	if len(findings) == 0 {
		return nil, []string{"No idle resources detected with the current criteria."}
	}
	return findings, nil
}

func allZero(p *Pivot, key string, months []string) bool {
	for _, m := range months {
		if p.Cost(key, m) != 0 {
			return false
		}
	}
	return true
}

// historySample takes the recent window plus up to six prior months.
func historySample(p *Pivot, key string, prior []string, idleMonths int) map[string]float64 {
	span := idleMonths + len(prior)
	if len(prior) > 6 {
		span = idleMonths + 6
	}
	sample := make(map[string]float64, span)
	for _, m := range p.Months[len(p.Months)-span:] {
		sample[m] = p.Cost(key, m)
	}
	return sample
}
