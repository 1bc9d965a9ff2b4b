package domain

import (
	"math"
	"strconv"
	"strings"
)

// SpendRecord represents one normalized row of the cloud spend table.
// Every field except Cost is carried as raw text: month keys are "YYYY-MM"
// strings by convention but are never validated or reformatted, so whatever
// the billing export produced is preserved verbatim.
type SpendRecord struct {
	Month        string  `json:"month"`
	Service      string  `json:"service"`
	Cost         float64 `json:"cost"`
	AccountID    string  `json:"account_id"`
	Subscription string  `json:"subscription"`
	ResourceID   string  `json:"resource_id"`
	Region       string  `json:"region"`
	Tags         string  `json:"tags"`
}

// Columns is the canonical spend schema, in contract order.
var Columns = []string{
	"month",
	"service",
	"cost",
	"account_id",
	"subscription",
	"resource_id",
	"region",
	"tags",
}

// ParseCost converts a raw cost cell into a float64. Anything that does not
// parse to a finite number becomes 0. The second return value reports whether
// the cell held real text that had to be thrown away: blank cells are a
// normal "no cost" case and are not counted as coerced.
func ParseCost(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, true
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true
	}
	return v, false
}

// FormatCost renders a cost the way it is embedded into index text and CSV
// exports: shortest representation that round-trips, no exponent for typical
// billing magnitudes.
func FormatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fields renders the record back into contract column order.
func (r SpendRecord) Fields() []string {
	return []string{
		r.Month,
		r.Service,
		FormatCost(r.Cost),
		r.AccountID,
		r.Subscription,
		r.ResourceID,
		r.Region,
		r.Tags,
	}
}
