package ai

import (
	"fmt"
	"strings"

	"github.com/avlasov/spendlens/internal/domain"
)

const systemPrompt = "You are a helpful FinOps assistant. Use only the provided context and dataset snippets. " +
	"When giving suggestions, provide 1-3 actionable next steps and include the sources (which rows you used). " +
	"If the question is outside the dataset, answer briefly and say you cannot answer from data."

// noContextText stands in when retrieval produced no rows.
const noContextText = "No additional numeric context provided."

// BuildContext renders retrieved rows as the compact text block the model
// sees, one line per row with the cost truncated to whole dollars.
func BuildContext(rows []domain.SpendRecord) string {
	if len(rows) == 0 {
		return noContextText
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s: %s → $%d", r.Month, r.Service, int64(r.Cost))
	}
	return strings.Join(lines, "\n")
}

func buildUserPrompt(question string, rows []domain.SpendRecord) string {
	return fmt.Sprintf(
		"Context (rows):\n%s\n\nUser question: %s\n\nAnswer concisely, include the reasoning and list the context lines used as sources.",
		BuildContext(rows), question)
}
