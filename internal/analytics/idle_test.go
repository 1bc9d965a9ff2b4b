package analytics

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
)

func resourceRow(month, service string, cost float64, resourceID string) dataset.Row {
	return dataset.Row{SpendRecord: domain.SpendRecord{
		Month: month, Service: service, Cost: cost, ResourceID: resourceID,
	}}
}

// resourceSeries lays one cost value per month for a single resource.
func resourceSeries(resourceID string, costs ...float64) *dataset.Table {
	t := &dataset.Table{}
	for i, c := range costs {
		t.Rows = append(t.Rows, resourceRow(fmt.Sprintf("2025-%02d", i+1), "Compute", c, resourceID))
	}
	return t
}

func TestDetectIdleResources(t *testing.T) {
	table := resourceSeries("vm-1", 100, 100, 100, 0, 0)

	findings, warnings := DetectIdleResources(table, DefaultIdleOptions())
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want exactly one", findings)
	}

	f := findings[0]
	if f.ResourceID != "vm-1" {
		t.Errorf("ResourceID = %q", f.ResourceID)
	}
	if f.EstimatedMonthlySaving != 100.0 || f.PriorMonthsAvg != 100.0 {
		t.Errorf("saving = %v avg = %v, want 100.0", f.EstimatedMonthlySaving, f.PriorMonthsAvg)
	}
	if want := []string{"2025-04", "2025-05"}; !reflect.DeepEqual(f.LastMonthsZero, want) {
		t.Errorf("LastMonthsZero = %v, want %v", f.LastMonthsZero, want)
	}
	wantHistory := map[string]float64{
		"2025-01": 100, "2025-02": 100, "2025-03": 100, "2025-04": 0, "2025-05": 0,
	}
	if !reflect.DeepEqual(f.HistorySample, wantHistory) {
		t.Errorf("HistorySample = %v, want %v", f.HistorySample, wantHistory)
	}
}

func TestDetectIdleResourcesNeverFlagsZeroHistory(t *testing.T) {
	table := resourceSeries("vm-1", 0, 0, 0, 0, 0)

	findings, warnings := DetectIdleResources(table, DefaultIdleOptions())
	if len(findings) != 0 {
		t.Errorf("findings = %+v, want none for a resource with no historical cost", findings)
	}
	if len(warnings) != 1 || warnings[0] != "No idle resources detected with the current criteria." {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestDetectIdleResourcesNonzeroRecentWindow(t *testing.T) {
	table := resourceSeries("vm-1", 100, 100, 100, 0, 5)

	if findings, _ := DetectIdleResources(table, DefaultIdleOptions()); len(findings) != 0 {
		t.Errorf("findings = %+v, want none when the recent window has cost", findings)
	}
}

func TestDetectIdleResourcesBelowMinSaving(t *testing.T) {
	table := resourceSeries("vm-1", 0.5, 0.5, 0.5, 0, 0)

	opts := DefaultIdleOptions()
	if findings, _ := DetectIdleResources(table, opts); len(findings) != 0 {
		t.Errorf("findings = %+v, want none below min saving", findings)
	}

	opts.MinMonthlySaving = 0.25
	findings, _ := DetectIdleResources(table, opts)
	if len(findings) != 1 {
		t.Errorf("findings = %+v, want one with lowered min saving", findings)
	}
}

func TestDetectIdleResourcesSoftPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		table *dataset.Table
		want  string
	}{
		{
			name:  "empty table",
			table: &dataset.Table{},
			want:  "Empty table; no resources to analyze.",
		},
		{
			name: "no resource ids",
			table: spendTable(
				rec("2025-01", "Compute", 100),
				rec("2025-02", "Compute", 100),
			),
			want: "No resource_id column present or all resource_id values are missing.",
		},
		{
			name:  "too few months",
			table: resourceSeries("vm-1", 100, 0),
			want:  "Not enough months of data to detect idle resources (need > 2).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, warnings := DetectIdleResources(tt.table, DefaultIdleOptions())
			if len(findings) != 0 {
				t.Errorf("findings = %+v, want none", findings)
			}
			if len(warnings) != 1 || warnings[0] != tt.want {
				t.Errorf("warnings = %v, want [%q]", warnings, tt.want)
			}
		})
	}
}

func TestDetectIdleResourcesContextFields(t *testing.T) {
	table := resourceSeries("db-1", 40, 40, 0, 0)
	for i := range table.Rows {
		table.Rows[i].RawOwner = "data-team"
		table.Rows[i].RawEnv = "staging"
		table.Rows[i].Tags = "team:data,tier:gold"
	}

	findings, _ := DetectIdleResources(table, DefaultIdleOptions())
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	f := findings[0]
	if f.Owner != "data-team" || f.Env != "staging" || f.Tags != "team:data,tier:gold" {
		t.Errorf("context = %q/%q/%q", f.Owner, f.Env, f.Tags)
	}
}

func TestDetectIdleResourcesHistoryBounded(t *testing.T) {
	costs := make([]float64, 10)
	for i := 0; i < 8; i++ {
		costs[i] = 100
	}
	table := resourceSeries("vm-1", costs...)

	findings, _ := DetectIdleResources(table, DefaultIdleOptions())
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	// Recent window of 2 plus at most 6 prior months.
	if len(findings[0].HistorySample) != 8 {
		t.Errorf("history size = %d, want 8", len(findings[0].HistorySample))
	}
	if _, ok := findings[0].HistorySample["2025-02"]; ok {
		t.Error("history includes months beyond the bounded sample")
	}
	if v := findings[0].HistorySample["2025-03"]; v != 100 {
		t.Errorf("history[2025-03] = %v, want 100", v)
	}
}

func TestDetectIdleResourcesSkipsUnattributedRows(t *testing.T) {
	table := resourceSeries("vm-1", 100, 100, 100, 0, 0)
	// Unattributed spend in the recent window must not mask vm-1's idleness,
	// and must not produce a finding of its own.
	table.Rows = append(table.Rows, resourceRow("2025-05", "Compute", 999, ""))

	findings, _ := DetectIdleResources(table, DefaultIdleOptions())
	if len(findings) != 1 || findings[0].ResourceID != "vm-1" {
		t.Errorf("findings = %+v, want only vm-1", findings)
	}
}
