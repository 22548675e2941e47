package slipstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

// DiskStore writes slips under a local directory. Refs are bare file names.
type DiskStore struct {
	dir      string
	maxBytes int64
}

func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload folder %q: %w", dir, err)
	}

	return &DiskStore{dir: dir, maxBytes: maxBytes}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	_, ext, body, err := sniff(r)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".slip-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(body, s.maxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write slip: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close slip: %w", closeErr)
	}
	if written > s.maxBytes {
		return "", tooLarge(s.maxBytes)
	}

	name := objectName(key, ext)
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store slip: %w", err)
	}

	return name, nil
}

func (s *DiskStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" || filepath.Base(ref) != ref {
		return nil, "", domain.ErrSlipNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", domain.ErrSlipNotFound
		}
		return nil, "", fmt.Errorf("open slip: %w", err)
	}

	return f, contentTypeFor(ref), nil
}

func (s *DiskStore) Close() error {
	return nil
}
