package bigquery

import (
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
)

// SpendRow mirrors one row of a cloud spend table in BigQuery. Billing
// exports carry a full usage DATE; the contract month key is derived from
// it. Every other column is NULLABLE.
type SpendRow struct {
	UsageDate civil.Date `bigquery:"usage_date"` // DATE, REQUIRED in schema

	Service      bigquery.NullString  `bigquery:"service"`      // NULLABLE
	Cost         bigquery.NullFloat64 `bigquery:"cost"`         // FLOAT64, NULLABLE
	AccountID    bigquery.NullString  `bigquery:"account_id"`   // NULLABLE
	Subscription bigquery.NullString  `bigquery:"subscription"` // NULLABLE
	ResourceID   bigquery.NullString  `bigquery:"resource_id"`  // NULLABLE
	Region       bigquery.NullString  `bigquery:"region"`       // NULLABLE
	Tags         bigquery.NullString  `bigquery:"tags"`         // NULLABLE

	Owner bigquery.NullString `bigquery:"owner"` // NULLABLE
	Env   bigquery.NullString `bigquery:"env"`   // NULLABLE
}

// Normalized converts the warehouse row into a dataset row. NULL text maps
// to "" and a NULL cost to 0; neither counts as a coerced cell, since the
// warehouse schema already typed them.
func (r SpendRow) Normalized() dataset.Row {
	var cost float64
	if r.Cost.Valid {
		cost = r.Cost.Float64
	}
	return dataset.Row{
		SpendRecord: domain.SpendRecord{
			Month:        MonthKey(r.UsageDate),
			Service:      text(r.Service),
			Cost:         cost,
			AccountID:    text(r.AccountID),
			Subscription: text(r.Subscription),
			ResourceID:   text(r.ResourceID),
			Region:       text(r.Region),
			Tags:         text(r.Tags),
		},
		RawOwner: text(r.Owner),
		RawEnv:   text(r.Env),
	}
}

// MonthKey renders a usage date as the "YYYY-MM" month key used across the
// spend contract.
func MonthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func text(s bigquery.NullString) string {
	if s.Valid {
		return s.StringVal
	}
	return ""
}
