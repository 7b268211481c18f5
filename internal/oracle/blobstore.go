package oracle

import (
	"context"
	"fmt"
	"io"
)

// BlobStoreAdapter persists raw ingest upload bytes to the configured GCS
// scratch bucket so the async worker can fetch them back by path, keyed by
// doc_id the same way ImageStoreAdapter keys derived images. The upload
// handler writes once at enqueue time; the worker reads once at process
// time, then the object can be left for the bucket's own lifecycle rules.
type BlobStoreAdapter struct {
	client *Client
	bucket string
}

// NewBlobStore wraps Client's storage client for source-upload persistence.
func NewBlobStore(c *Client, bucket string) *BlobStoreAdapter {
	return &BlobStoreAdapter{client: c, bucket: bucket}
}

// Put uploads data under uploads/{docID} and returns its gs:// path.
func (s *BlobStoreAdapter) Put(ctx context.Context, docID string, data []byte) (string, error) {
	object := fmt.Sprintf("uploads/%s", docID)
	w := s.client.storageClient.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("oracle.BlobStore: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("oracle.BlobStore: close: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// Get fetches previously-stored upload bytes by their gs:// path.
func (s *BlobStoreAdapter) Get(ctx context.Context, path string) ([]byte, error) {
	object := pathToObject(path, s.bucket)
	r, err := s.client.storageClient.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle.BlobStore: open reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("oracle.BlobStore: read: %w", err)
	}
	return data, nil
}

// pathToObject strips the "gs://{bucket}/" prefix if present, tolerating a
// bare object key too (useful in tests that don't round-trip through Put).
func pathToObject(path, bucket string) string {
	prefix := fmt.Sprintf("gs://%s/", bucket)
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):]
	}
	return path
}
