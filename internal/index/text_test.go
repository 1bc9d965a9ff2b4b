package index

import (
	"testing"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
)

func TestRowText(t *testing.T) {
	tests := []struct {
		name   string
		record domain.SpendRecord
		want   string
	}{
		{
			name: "full row",
			record: domain.SpendRecord{
				Month: "2025-01", Service: "Compute", Cost: 1200,
				ResourceID: "vm-1", Tags: "team:core",
			},
			want: "2025-01 | Compute | cost:1200 | resource:vm-1 | tags:team:core",
		},
		{
			name: "fractional cost",
			record: domain.SpendRecord{
				Month: "2025-02", Service: "Storage", Cost: 10.5,
			},
			want: "2025-02 | Storage | cost:10.5 | resource: | tags:",
		},
		{
			name:   "empty row keeps the template shape",
			record: domain.SpendRecord{},
			want:   " |  | cost:0 | resource: | tags:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RowText(tt.record); got != tt.want {
				t.Errorf("RowText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRowTexts(t *testing.T) {
	table := &dataset.Table{Rows: []dataset.Row{
		{SpendRecord: domain.SpendRecord{Month: "2025-01", Service: "A", Cost: 1}},
		{SpendRecord: domain.SpendRecord{Month: "2025-02", Service: "B", Cost: 2}},
	}}

	texts := RowTexts(table)
	if len(texts) != 2 {
		t.Fatalf("len = %d, want 2", len(texts))
	}
	if texts[0] != RowText(table.Rows[0].SpendRecord) {
		t.Errorf("texts[0] = %q out of row order", texts[0])
	}
}
