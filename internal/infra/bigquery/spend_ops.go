package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/avlasov/spendlens/internal/dataset"
)

// QuerySpendRows retrieves all spend rows of the given table, creating a
// one-shot client billed to the reference's project.
func QuerySpendRows(ctx context.Context, tableRef string) ([]dataset.Row, error) {
	if err := validateTableRef(tableRef); err != nil {
		return nil, fmt.Errorf("QuerySpendRows: %w", err)
	}

	project := strings.SplitN(tableRef, ".", 2)[0]
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("QuerySpendRows: creating client: %w", err)
	}
	defer client.Close()

	return QuerySpendRowsWithClient(ctx, client, tableRef)
}

// QuerySpendRowsWithClient retrieves all spend rows using the provided
// BigQuery client. Rows come back already normalized, ordered by usage
// date then service so repeated loads see the same row order.
func QuerySpendRowsWithClient(ctx context.Context, client *bigquery.Client, tableRef string) ([]dataset.Row, error) {
	if err := validateTableRef(tableRef); err != nil {
		return nil, fmt.Errorf("QuerySpendRowsWithClient: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			usage_date,
			service,
			cost,
			account_id,
			subscription,
			resource_id,
			region,
			tags,
			owner,
			env
		FROM `+"`%s`"+`
		ORDER BY usage_date, service
	`, tableRef)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySpendRowsWithClient: reading query: %w", err)
	}

	var rows []dataset.Row
	for {
		var row SpendRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySpendRowsWithClient: iterating: %w", err)
		}
		rows = append(rows, row.Normalized())
	}

	return rows, nil
}

// validateTableRef checks a project.dataset.table reference. The reference
// is interpolated into the query as a quoted identifier, so it must not
// carry quoting characters of its own.
func validateTableRef(ref string) error {
	if strings.ContainsAny(ref, "`\n") {
		return fmt.Errorf("validateTableRef: invalid characters in %q", ref)
	}
	parts := strings.Split(ref, ".")
	if len(parts) != 3 {
		return fmt.Errorf("validateTableRef: want project.dataset.table, got %q", ref)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("validateTableRef: empty component in %q", ref)
		}
	}
	return nil
}
