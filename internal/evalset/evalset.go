// Package evalset measures retrieval quality of the spend index against a
// small fixed question set: Recall@k over questions whose answers live in
// specific dataset rows.
package evalset

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avlasov/spendlens/internal/domain"
	"github.com/avlasov/spendlens/internal/index"
)

// DefaultKs are the recall cutoffs reported by the stock evaluation.
var DefaultKs = []int{1, 3, 5}

// QAPair is one evaluation question. A query counts as recalled at k when
// at least one expected term appears in at least one of the top k rows.
type QAPair struct {
	ID       int      `json:"id"`
	Question string   `json:"q"`
	Expected []string `json:"expected"`
}

// Querier is the slice of the search index the evaluation needs.
type Querier interface {
	Query(ctx context.Context, text string, topK int) ([]index.Result, error)
}

// QueryResult is one evaluated question at a given cutoff.
type QueryResult struct {
	ID           int            `json:"id"`
	Question     string         `json:"q"`
	Expected     []string       `json:"expected"`
	MatchedTerms []string       `json:"matched_terms"`
	Found        bool           `json:"found_any"`
	Retrieved    []index.Result `json:"retrieved"`
	Err          string         `json:"error,omitempty"`
}

// KReport aggregates recall at one cutoff.
type KReport struct {
	K        int           `json:"k"`
	Recall   float64       `json:"recall"`
	NQueries int           `json:"n_queries"`
	NFound   int           `json:"n_found"`
	Details  []QueryResult `json:"details"`
}

// Report is a full evaluation run, shaped for eval_results.json.
type Report struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	PerK      []KReport `json:"per_k"`
}

// Pairs returns the built-in question set. The questions target the demo
// spend dataset shipped under data/, so a freshly indexed checkout scores
// meaningfully out of the box.
func Pairs() []QAPair {
	return []QAPair{
		{ID: 1, Question: "What was total spend in 2025-02? Break it down by service.", Expected: []string{"2025-02", "Compute Engine", "BigQuery"}},
		{ID: 2, Question: "Top service in Feb 2025?", Expected: []string{"BigQuery", "Compute Engine"}},
		{ID: 3, Question: "Which month had the highest compute engine cost?", Expected: []string{"2025-03", "Compute Engine"}},
		{ID: 4, Question: "List items with missing tags.", Expected: []string{"bucket-assets", "Cloud Storage"}},
		{ID: 5, Question: "Explain sudden jump in cost in March 2025.", Expected: []string{"2025-03", "Compute Engine", "900", "1800"}},
		{ID: 6, Question: "Which resources look idle?", Expected: []string{"vm-batch-7", "0"}},
		{ID: 7, Question: "Show Cloud Storage spend by month.", Expected: []string{"Cloud Storage", "2025-01", "2025-02", "2025-03"}},
		{ID: 8, Question: "Which service costs 500 in Jan 2025?", Expected: []string{"500", "BigQuery", "2025-01"}},
		{ID: 9, Question: "What was BigQuery cost trend?", Expected: []string{"BigQuery", "500", "700", "900"}},
		{ID: 10, Question: "Which service had cost 1200 in Jan 2025?", Expected: []string{"1200", "Compute Engine", "2025-01"}},
		{ID: 11, Question: "Any rows missing tags?", Expected: []string{"bucket-assets", "2025-03"}},
		{ID: 12, Question: "Top 3 cost drivers in 2025-03", Expected: []string{"2025-03", "Compute Engine", "BigQuery", "Cloud Storage"}},
	}
}

// TermInRow reports whether the term appears, case-insensitively, in any
// contract field of the record, the formatted cost included.
func TermInRow(term string, rec domain.SpendRecord) bool {
	if term == "" {
		return false
	}
	t := strings.ToLower(term)
	for _, v := range rec.Fields() {
		if strings.Contains(strings.ToLower(v), t) {
			return true
		}
	}
	return false
}

// EvaluateRecall runs every question at every cutoff and aggregates
// Recall@k. Nil pairs or ks fall back to the built-in set and DefaultKs.
// Query failures are recorded on the affected question, not raised, so a
// partially broken index still produces a report.
func EvaluateRecall(ctx context.Context, q Querier, pairs []QAPair, ks []int) *Report {
	if len(pairs) == 0 {
		pairs = Pairs()
	}
	if len(ks) == 0 {
		ks = DefaultKs
	}

	report := &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	for _, k := range ks {
		kr := KReport{K: k, NQueries: len(pairs)}
		for _, pair := range pairs {
			res := evaluateOne(ctx, q, pair, k)
			if res.Found {
				kr.NFound++
			}
			kr.Details = append(kr.Details, res)
		}
		kr.Recall = float64(kr.NFound) / float64(kr.NQueries)
		report.PerK = append(report.PerK, kr)
	}

	return report
}

func evaluateOne(ctx context.Context, q Querier, pair QAPair, k int) QueryResult {
	res := QueryResult{ID: pair.ID, Question: pair.Question, Expected: pair.Expected}

	rows, err := q.Query(ctx, pair.Question, k)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Retrieved = rows

	for _, term := range pair.Expected {
		for _, row := range rows {
			if TermInRow(term, row.SpendRecord) {
				res.Found = true
				res.MatchedTerms = append(res.MatchedTerms, term)
				break
			}
		}
	}

	return res
}
