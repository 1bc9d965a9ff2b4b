package analytics

import (
	"github.com/avlasov/spendlens/internal/dataset"
)

// Flag kinds for spend-shift analysis.
const (
	FlagSuddenIncrease = "sudden_increase"
	FlagZeroTotal      = "zero_total"
)

// DefaultShiftThresholdPct is the percent-change threshold applied when the
// caller does not supply one.
const DefaultShiftThresholdPct = 20.0

// ShiftFlag marks a service whose spend pattern deserves attention: a
// month-over-month jump above the threshold, or an all-time total of zero.
type ShiftFlag struct {
	Service     string  `json:"service"`
	Kind        string  `json:"kind"`
	PctIncrease float64 `json:"pct_increase"`
}

// DetectSpendShifts compares the two most recent months' per-service totals
// and flags services whose percent change strictly exceeds thresholdPct,
// plus services whose all-time total is exactly zero. The percent change is
// (last − prev') / prev' × 100 with prev' = 1 when prev is 0; this is a
// deliberate approximation to avoid division by zero, so a service appearing
// from nothing reads as roughly its new cost in percent.
//
// The returned bool reports whether the month-over-month analysis ran; it is
// false when the table spans fewer than two months, in which case only
// zero-total flags are produced. Flags are ordered sudden-increase first,
// then zero-total, each ascending by service.
func DetectSpendShifts(t *dataset.Table, thresholdPct float64) ([]ShiftFlag, bool) {
	pivot := BuildPivot(t, func(r dataset.Row) string { return r.Service })

	var flags []ShiftFlag
	trendAnalyzed := len(pivot.Months) >= 2

	if trendAnalyzed {
		last := pivot.Months[len(pivot.Months)-1]
		prev := pivot.Months[len(pivot.Months)-2]
		for _, svc := range pivot.Keys {
			prevSafe := pivot.Cost(svc, prev)
			if prevSafe == 0 {
				prevSafe = 1
			}
			pct := (pivot.Cost(svc, last) - prevSafe) / prevSafe * 100
			if pct > thresholdPct {
				flags = append(flags, ShiftFlag{
					Service:     svc,
					Kind:        FlagSuddenIncrease,
					PctIncrease: round2(pct),
				})
			}
		}
	}

	for _, svc := range pivot.Keys {
		if pivot.Total(svc) == 0 {
			flags = append(flags, ShiftFlag{Service: svc, Kind: FlagZeroTotal})
		}
	}

	return flags, trendAnalyzed
}
