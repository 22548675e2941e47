package slipstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

const uploadTimeout = 2 * time.Minute

// GCSStore writes slips to a Cloud Storage bucket using Application Default
// Credentials. Refs are gs:// URIs.
type GCSStore struct {
	client   *storage.Client
	bucket   string
	prefix   string
	maxBytes int64
}

func NewGCSStore(ctx context.Context, bucket, prefix string, maxBytes int64) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("slip bucket is required for the gcs backend")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSStore{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		maxBytes: maxBytes,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	contentType, ext, body, err := sniff(r)
	if err != nil {
		return "", err
	}

	name := objectName(key, ext)
	if s.prefix != "" {
		name = path.Join(s.prefix, name)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	written, err := io.Copy(w, io.LimitReader(body, s.maxBytes+1))
	if err != nil || written > s.maxBytes {
		// Cancelling before Close abandons the upload.
		cancel()
		_ = w.Close()
		if err != nil {
			return "", fmt.Errorf("copy slip to GCS writer: %w", err)
		}
		return "", tooLarge(s.maxBytes)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

func (s *GCSStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	bucket, object, err := splitURI(ref)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", domain.ErrSlipNotFound
		}
		return nil, "", fmt.Errorf("open GCS object reader: %w", err)
	}

	contentType := rc.Attrs.ContentType
	if contentType == "" {
		contentType = contentTypeFor(object)
	}

	return rc, contentType, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func splitURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("%w: invalid GCS URI %q", domain.ErrSlipNotFound, uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid GCS URI %q", domain.ErrSlipNotFound, uri)
	}

	return parts[0], parts[1], nil
}
