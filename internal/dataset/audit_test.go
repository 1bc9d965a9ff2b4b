package dataset

import (
	"reflect"
	"strings"
	"testing"
)

func auditTable(rows ...[]string) *Table {
	raw := &RawTable{
		Columns: []string{"month", "service", "cost", "resource_id", "tags"},
		Rows:    rows,
	}
	return Normalize(raw)
}

func TestAuditCleanTable(t *testing.T) {
	table := auditTable(
		[]string{"2024-01", "Compute", "100", "vm-1", "team:core"},
		[]string{"2024-02", "Storage", "50", "disk-1", "team:data"},
	)

	if warnings := Audit(table); len(warnings) != 0 {
		t.Errorf("Audit() = %v, want no warnings", warnings)
	}
}

func TestAuditCategoryOrder(t *testing.T) {
	// One table that trips every category at once.
	table := auditTable(
		[]string{"", "Compute", "100", "vm-1", "team:core"},
		[]string{"2024-01", "", "bad", "vm-2", ""},
		[]string{"2024-01", "Storage", "-5", "disk-1", "team:data"},
		[]string{"2024-01", "Network", "0", "lb-1", ""},
		[]string{"2024-02", "Compute", "100", "vm-1", "team:core"},
		[]string{"2024-02", "Compute", "100", "vm-1", "team:core"},
	)

	want := []string{
		"1 rows missing 'month' value.",
		"1 rows missing 'service' value.",
		"1 rows with invalid 'cost' value (coerced to 0).",
		"1 duplicate rows found.",
		"1 rows with negative cost detected.",
		"2 rows with zero cost (may indicate idle/unbilled resources).",
		"2 rows missing tags.",
	}
	if got := Audit(table); !reflect.DeepEqual(got, want) {
		t.Errorf("Audit() = %v, want %v", got, want)
	}
}

func TestAuditDuplicateCount(t *testing.T) {
	table := auditTable(
		[]string{"2024-01", "Compute", "100", "vm-1", "t"},
		[]string{"2024-01", "Compute", "100", "vm-1", "t"},
		[]string{"2024-01", "Compute", "100", "vm-1", "t"},
	)

	warnings := Audit(table)
	found := false
	for _, w := range warnings {
		if w == "2 duplicate rows found." {
			found = true
		}
	}
	if !found {
		t.Errorf("Audit() = %v, want 2 duplicates for 3 identical rows", warnings)
	}
}

func TestAuditTagsWarnings(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want string
	}{
		{
			name: "all rows missing tags",
			rows: [][]string{
				{"2024-01", "Compute", "100", "vm-1", ""},
				{"2024-02", "Storage", "50", "disk-1", ""},
			},
			want: "All rows missing 'tags' column values. Consider adding tags for better analytics.",
		},
		{
			name: "some rows missing tags",
			rows: [][]string{
				{"2024-01", "Compute", "100", "vm-1", "team:core"},
				{"2024-02", "Storage", "50", "disk-1", ""},
			},
			want: "1 rows missing tags.",
		},
		{
			name: "empty table reports the all-missing form",
			rows: nil,
			want: "All rows missing 'tags' column values. Consider adding tags for better analytics.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := Audit(auditTable(tt.rows...))
			joined := strings.Join(warnings, "\n")
			if !strings.Contains(joined, tt.want) {
				t.Errorf("Audit() = %v, want warning %q", warnings, tt.want)
			}
		})
	}
}

func TestAuditEmptyTableOnlyTagsWarning(t *testing.T) {
	warnings := Audit(&Table{})
	if len(warnings) != 1 {
		t.Fatalf("Audit(empty) = %v, want exactly one warning", warnings)
	}
	if !strings.HasPrefix(warnings[0], "All rows missing 'tags'") {
		t.Errorf("Audit(empty) = %v", warnings)
	}
}
