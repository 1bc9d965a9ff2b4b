package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/avlasov/spendlens/internal/domain"
)

// RawTable is a decoded but not yet normalized table: a header row plus
// string cells exactly as they appeared in the source. Rows may be ragged;
// cells beyond a row's length read as empty.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the cell at (row, col index), or "" when the row is short.
func (t *RawTable) Cell(row int, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Row is one normalized spend row plus the normalization side channels the
// contract columns cannot carry: whether the cost cell was coerced, and the
// raw owner/env values from input columns the contract prunes. The side
// channels feed the quality audit and the idle-resource findings only.
type Row struct {
	domain.SpendRecord

	CostCoerced bool
	RawOwner    string
	RawEnv      string
}

// Table is an ordered, normalized spend table. Once built it is treated as
// read-only; analytics take their own private copy semantics from that.
type Table struct {
	Rows []Row
}

// Records projects the table onto plain spend records, in row order.
func (t *Table) Records() []domain.SpendRecord {
	out := make([]domain.SpendRecord, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.SpendRecord
	}
	return out
}

// RawTable renders the normalized table back into contract-ordered string
// cells. Normalize(t.RawTable()) reproduces t's contract columns exactly.
func (t *Table) RawTable() *RawTable {
	raw := &RawTable{Columns: append([]string(nil), domain.Columns...)}
	for _, r := range t.Rows {
		raw.Rows = append(raw.Rows, r.Fields())
	}
	return raw
}

// DecodeCSV reads a CSV stream into a RawTable. The first record is the
// header; ragged data rows are accepted. A stream that cannot be parsed as
// CSV at all is a hard error, unlike a missing file.
func DecodeCSV(r io.Reader) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: %w", err)
	}
	if len(records) == 0 {
		return &RawTable{}, nil
	}

	return &RawTable{
		Columns: records[0],
		Rows:    records[1:],
	}, nil
}

// Normalize maps a raw table onto the fixed 8-column spend contract.
// Missing contract columns are synthesized empty, extra columns are dropped
// (after capturing the owner/env side channels), and cost cells go through
// domain.ParseCost. Cell text other than cost is preserved verbatim.
// Normalize never fails: any input produces a schema-correct table.
func Normalize(raw *RawTable) *Table {
	idx := make(map[string]int, len(raw.Columns))
	for i, name := range raw.Columns {
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}

	col := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}

	var (
		monthIdx   = col("month")
		serviceIdx = col("service")
		costIdx    = col("cost")
		accountIdx = col("account_id")
		subIdx     = col("subscription")
		resIdx     = col("resource_id")
		regionIdx  = col("region")
		tagsIdx    = col("tags")
		ownerIdx   = col("owner")
		envIdx     = col("env")
	)

	table := &Table{Rows: make([]Row, 0, len(raw.Rows))}
	for i := range raw.Rows {
		cost, coerced := domain.ParseCost(raw.Cell(i, costIdx))
		table.Rows = append(table.Rows, Row{
			SpendRecord: domain.SpendRecord{
				Month:        raw.Cell(i, monthIdx),
				Service:      raw.Cell(i, serviceIdx),
				Cost:         cost,
				AccountID:    raw.Cell(i, accountIdx),
				Subscription: raw.Cell(i, subIdx),
				ResourceID:   raw.Cell(i, resIdx),
				Region:       raw.Cell(i, regionIdx),
				Tags:         raw.Cell(i, tagsIdx),
			},
			CostCoerced: coerced,
			RawOwner:    raw.Cell(i, ownerIdx),
			RawEnv:      raw.Cell(i, envIdx),
		})
	}
	return table
}

// WriteCSV writes the normalized table as CSV in contract column order.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(domain.Columns); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for i, r := range t.Rows {
		if err := cw.Write(r.Fields()); err != nil {
			return fmt.Errorf("WriteCSV: row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}
