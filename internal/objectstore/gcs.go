package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/NEMYSESx/sift/internal/config"
)

// GCSStore stores logs in Google Cloud Storage, using application default
// credentials.
type GCSStore struct {
	client    *storage.Client
	projectID string
}

func NewGCSStore(ctx context.Context, cfg config.GCSConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSStore{client: client, projectID: cfg.ProjectID}, nil
}

func (s *GCSStore) EnsureBucket(ctx context.Context, bucket string) error {
	handle := s.client.Bucket(bucket)
	_, err := handle.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if err := handle.Create(ctx, s.projectID, nil); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *GCSStore) Put(ctx context.Context, data []byte, key, bucket string) error {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/plain"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to store %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key, bucket string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}
