package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/avlasov/spendlens/internal/dataset"
)

// SpendRepository serves spend rows from BigQuery through a shared client,
// avoiding a new connection per query. It implements dataset.SpendSource
// and backs "bq://project.dataset.table" source references.
type SpendRepository struct {
	client *bigquery.Client
}

var _ dataset.SpendSource = (*SpendRepository)(nil)

// NewSpendRepository creates a repository whose queries bill to the given
// project. An empty projectID falls back to ADC project detection.
func NewSpendRepository(ctx context.Context, projectID string) (*SpendRepository, error) {
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSpendRepository: creating client: %w", err)
	}
	return &SpendRepository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *SpendRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// SpendRows delegates to QuerySpendRowsWithClient with the shared client.
func (r *SpendRepository) SpendRows(ctx context.Context, tableRef string) ([]dataset.Row, error) {
	return QuerySpendRowsWithClient(ctx, r.client, tableRef)
}
