package media

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSUploader hosts images in a Google Cloud Storage bucket.
type GCSUploader struct {
	client *storage.Client
	bucket string
	folder string
}

// NewGCS connects with application default credentials and checks that
// the bucket is reachable.
func NewGCS(ctx context.Context, bucket, folder string) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("media: gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("media: gcs bucket %s: %w", bucket, err)
	}
	log.Printf("INFO: GCS bucket %s ready for uploads", bucket)
	return &GCSUploader{client: client, bucket: bucket, folder: folder}, nil
}

func (g *GCSUploader) Upload(ctx context.Context, contentType string, data []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s_%d.%s", g.folder, uuid.NewString(), time.Now().UnixNano(), extension(contentType))

	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", objectName, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, objectName), nil
}

// Close releases the storage client.
func (g *GCSUploader) Close() error {
	return g.client.Close()
}
