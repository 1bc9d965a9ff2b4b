package dataset

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
)

// ObjectFetcher pulls a remote object's raw bytes by gs:// URI.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, uri string) ([]byte, error)
}

// SpendSource returns already-normalized spend rows from a warehouse table.
type SpendSource interface {
	SpendRows(ctx context.Context, tableRef string) ([]Row, error)
}

// Loader resolves a source reference to a normalized, audited table.
// Supported forms: "" (the configured default path), a local CSV path,
// "gs://bucket/object" when an ObjectFetcher is wired, and "bq://table"
// when a SpendSource is wired.
type Loader struct {
	DefaultPath string
	Objects     ObjectFetcher
	Warehouse   SpendSource
}

// Load fetches, decodes, normalizes and audits the given source.
// A missing local file is not an error: it yields an empty table and a
// single warning, so a fresh deployment starts clean. A file that exists
// but cannot be decoded is an error.
func (l *Loader) Load(ctx context.Context, source string) (*Table, []string, error) {
	if source == "" {
		source = l.DefaultPath
	}

	switch {
	case strings.HasPrefix(source, "gs://"):
		if l.Objects == nil {
			return nil, nil, fmt.Errorf("Load: source %q: no object store configured", source)
		}
		data, err := l.Objects.FetchObject(ctx, source)
		if err != nil {
			return nil, nil, fmt.Errorf("Load: fetch %q: %w", source, err)
		}
		return l.fromCSV(source, data)

	case strings.HasPrefix(source, "bq://"):
		if l.Warehouse == nil {
			return nil, nil, fmt.Errorf("Load: source %q: no warehouse configured", source)
		}
		rows, err := l.Warehouse.SpendRows(ctx, strings.TrimPrefix(source, "bq://"))
		if err != nil {
			return nil, nil, fmt.Errorf("Load: query %q: %w", source, err)
		}
		table := &Table{Rows: rows}
		return table, Audit(table), nil

	default:
		data, err := os.ReadFile(source)
		if os.IsNotExist(err) {
			return &Table{}, []string{"Data file not found; empty table returned."}, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("Load: read %q: %w", source, err)
		}
		return l.fromCSV(source, data)
	}
}

func (l *Loader) fromCSV(source string, data []byte) (*Table, []string, error) {
	raw, err := DecodeCSV(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("Load: decode %q: %w", source, err)
	}
	table := Normalize(raw)
	return table, Audit(table), nil
}
