package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ParseLocation splits "gs://bucket/prefix", or a bare bucket name, into
// bucket and object prefix.
func ParseLocation(location string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(location), "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS location: %q", location)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// GCSStore is an ObjectStore backed by a Google Cloud Storage bucket. It
// assumes Application Default Credentials are configured.
type GCSStore struct {
	client *storage.Client
	bucket string
	// Timeout bounds each object upload.
	Timeout time.Duration
}

// NewGCSStore wraps an existing storage client.
func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, Timeout: 2 * time.Minute}
}

// Put uploads r as the named object.
func (s *GCSStore) Put(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", name, err)
	}
	return nil
}

// Get opens the named object for reading.
func (s *GCSStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("object %s/%s: %w", s.bucket, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", s.bucket, name, err)
	}
	return rc, nil
}

// List returns the names of all objects under prefix, sorted.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	sort.Strings(names)
	return names, nil
}

var _ ObjectStore = (*GCSStore)(nil)
