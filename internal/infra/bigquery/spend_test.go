package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

func TestSpendRowNormalized(t *testing.T) {
	row := SpendRow{
		UsageDate:    civil.Date{Year: 2025, Month: time.January, Day: 15},
		Service:      bigquery.NullString{StringVal: "Compute", Valid: true},
		Cost:         bigquery.NullFloat64{Float64: 1200.5, Valid: true},
		AccountID:    bigquery.NullString{StringVal: "acct-1", Valid: true},
		Subscription: bigquery.NullString{StringVal: "prod", Valid: true},
		ResourceID:   bigquery.NullString{StringVal: "vm-1", Valid: true},
		Region:       bigquery.NullString{StringVal: "eu-west1", Valid: true},
		Tags:         bigquery.NullString{StringVal: "team:core", Valid: true},
		Owner:        bigquery.NullString{StringVal: "alice", Valid: true},
		Env:          bigquery.NullString{StringVal: "prod", Valid: true},
	}

	got := row.Normalized()
	if got.Month != "2025-01" {
		t.Errorf("Month = %q, want 2025-01", got.Month)
	}
	if got.Service != "Compute" || got.Cost != 1200.5 {
		t.Errorf("Service/Cost = %q/%v", got.Service, got.Cost)
	}
	if got.AccountID != "acct-1" || got.Subscription != "prod" || got.ResourceID != "vm-1" {
		t.Errorf("identity columns = %q/%q/%q", got.AccountID, got.Subscription, got.ResourceID)
	}
	if got.Region != "eu-west1" || got.Tags != "team:core" {
		t.Errorf("region/tags = %q/%q", got.Region, got.Tags)
	}
	if got.RawOwner != "alice" || got.RawEnv != "prod" {
		t.Errorf("owner/env side channel = %q/%q", got.RawOwner, got.RawEnv)
	}
	if got.CostCoerced {
		t.Error("CostCoerced = true for a typed warehouse cost")
	}
}

func TestSpendRowNormalizedNulls(t *testing.T) {
	row := SpendRow{UsageDate: civil.Date{Year: 2025, Month: time.March, Day: 1}}

	got := row.Normalized()
	if got.Month != "2025-03" {
		t.Errorf("Month = %q, want 2025-03", got.Month)
	}
	if got.Cost != 0 {
		t.Errorf("NULL cost = %v, want 0", got.Cost)
	}
	if got.CostCoerced {
		t.Error("NULL cost counted as coerced")
	}
	if got.Service != "" || got.Tags != "" || got.RawOwner != "" || got.RawEnv != "" {
		t.Errorf("NULL text columns not empty: %+v", got)
	}
}

func TestMonthKey(t *testing.T) {
	tests := []struct {
		date civil.Date
		want string
	}{
		{civil.Date{Year: 2025, Month: time.January, Day: 31}, "2025-01"},
		{civil.Date{Year: 2025, Month: time.December, Day: 1}, "2025-12"},
		{civil.Date{Year: 999, Month: time.June, Day: 15}, "0999-06"},
	}
	for _, tt := range tests {
		if got := MonthKey(tt.date); got != tt.want {
			t.Errorf("MonthKey(%v) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestValidateTableRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{name: "fully qualified", ref: "my-project.billing.cloud_spend", wantErr: false},
		{name: "missing project", ref: "billing.cloud_spend", wantErr: true},
		{name: "too many parts", ref: "a.b.c.d", wantErr: true},
		{name: "empty component", ref: "my-project..cloud_spend", wantErr: true},
		{name: "backtick", ref: "p.d.t`; DROP TABLE x", wantErr: true},
		{name: "newline", ref: "p.d.t\nUNION", wantErr: true},
		{name: "empty", ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTableRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
		})
	}
}
