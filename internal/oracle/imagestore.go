package oracle

import (
	"context"
	"fmt"
)

// ImageStoreAdapter persists ingested image bytes to the configured GCS
// bucket, keyed by doc_id (§6 "Image protocol": "the raw image is persisted
// to an on-disk store keyed by doc_id" — generalized here to an object
// store since the teacher's own upload path (gcpclient/storage.go) is
// GCS-backed rather than local disk). Satisfies extract.ImageStore.
type ImageStoreAdapter struct {
	client *Client
	bucket string
}

// NewImageStore wraps Client's storage client for image persistence so
// extract.Registry only depends on the narrow extract.ImageStore seam.
func NewImageStore(c *Client, bucket string) *ImageStoreAdapter {
	return &ImageStoreAdapter{client: c, bucket: bucket}
}

func (s *ImageStoreAdapter) Store(ctx context.Context, docID string, data []byte, mimeType string) (string, error) {
	object := fmt.Sprintf("images/%s", docID)
	w := s.client.storageClient.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("oracle.ImageStore: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("oracle.ImageStore: close: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}
