package dataset

import (
	"fmt"
	"strings"
)

// Audit runs the data quality checks over a normalized table and returns
// human-readable warnings, one per triggered category, in a fixed order:
// missing month, missing service, coerced cost, duplicates, negative cost,
// zero cost, missing tags. Warnings never block downstream analytics.
func Audit(t *Table) []string {
	var warnings []string

	missingMonth := 0
	missingService := 0
	coercedCost := 0
	negativeCost := 0
	zeroCost := 0
	missingTags := 0
	seen := make(map[string]int, len(t.Rows))
	duplicates := 0

	for _, r := range t.Rows {
		// Whitespace-only month/service cells count as missing; tags do not.
		if strings.TrimSpace(r.Month) == "" {
			missingMonth++
		}
		if strings.TrimSpace(r.Service) == "" {
			missingService++
		}
		if r.CostCoerced {
			coercedCost++
		}
		if r.Cost < 0 {
			negativeCost++
		}
		if r.Cost == 0 {
			zeroCost++
		}
		if r.Tags == "" {
			missingTags++
		}

		key := strings.Join(r.Fields(), "\x1f")
		seen[key]++
		if seen[key] > 1 {
			duplicates++
		}
	}

	if missingMonth > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows missing 'month' value.", missingMonth))
	}
	if missingService > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows missing 'service' value.", missingService))
	}
	if coercedCost > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows with invalid 'cost' value (coerced to 0).", coercedCost))
	}
	if duplicates > 0 {
		warnings = append(warnings, fmt.Sprintf("%d duplicate rows found.", duplicates))
	}
	if negativeCost > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows with negative cost detected.", negativeCost))
	}
	if zeroCost > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows with zero cost (may indicate idle/unbilled resources).", zeroCost))
	}

	// The all-rows case intentionally also covers the empty table.
	if missingTags == len(t.Rows) {
		warnings = append(warnings, "All rows missing 'tags' column values. Consider adding tags for better analytics.")
	} else if missingTags > 0 {
		warnings = append(warnings, fmt.Sprintf("%d rows missing tags.", missingTags))
	}

	return warnings
}
