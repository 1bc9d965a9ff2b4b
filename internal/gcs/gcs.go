// Package gcs reads and writes dataset objects in Google Cloud Storage.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// SplitURI splits "gs://bucket/path/to/object" into bucket and object parts.
func SplitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("SplitURI: not a gs:// URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("SplitURI: no object path in URI: %s", uri)
	}

	return parts[0], parts[1], nil
}

// FetchObject downloads the object bytes at the given gs:// URI.
func FetchObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: open %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("FetchObject: read %s/%s: %w", bucket, object, err)
	}

	return data, nil
}

// UploadObject writes data to bucket/object, creating or replacing it.
func UploadObject(ctx context.Context, bucket, object string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadObject: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadObject: write %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadObject: finalize %s/%s: %w", bucket, object, err)
	}

	return nil
}

// Client adapts the package functions to the interfaces consumed by the
// dataset loader and the index artifact mirror.
type Client struct{}

// NewClient creates a new Client.
func NewClient() *Client {
	return &Client{}
}

// FetchObject delegates to FetchObject.
func (c *Client) FetchObject(ctx context.Context, uri string) ([]byte, error) {
	return FetchObject(ctx, uri)
}

// UploadObject delegates to UploadObject.
func (c *Client) UploadObject(ctx context.Context, bucket, object string, data []byte) error {
	return UploadObject(ctx, bucket, object, data)
}
