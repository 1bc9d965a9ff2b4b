package gcs

import "testing"

func TestSplitURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "bucket and object",
			uri:        "gs://spend-data/exports/cloud_spend.csv",
			wantBucket: "spend-data",
			wantObject: "exports/cloud_spend.csv",
		},
		{
			name:       "nested object path",
			uri:        "gs://b/a/b/c",
			wantBucket: "b",
			wantObject: "a/b/c",
		},
		{
			name:    "missing scheme",
			uri:     "spend-data/exports/cloud_spend.csv",
			wantErr: true,
		},
		{
			name:    "http scheme",
			uri:     "https://spend-data/exports.csv",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://spend-data",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://spend-data/",
			wantErr: true,
		},
		{
			name:    "empty bucket",
			uri:     "gs:///exports.csv",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := SplitURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("SplitURI(%q) = (%q, %q), want (%q, %q)",
					tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
