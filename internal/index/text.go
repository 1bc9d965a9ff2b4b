package index

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
)

// RowText projects one spend row onto the stable text form that gets
// embedded. Build and query must agree on this template, so it never
// changes shape based on which fields are populated.
func RowText(r domain.SpendRecord) string {
	return fmt.Sprintf("%s | %s | cost:%s | resource:%s | tags:%s",
		r.Month, r.Service, domain.FormatCost(r.Cost), r.ResourceID, r.Tags)
}

// RowTexts projects a whole table in row order.
func RowTexts(t *dataset.Table) []string {
	return lo.Map(t.Rows, func(r dataset.Row, _ int) string {
		return RowText(r.SpendRecord)
	})
}
