package slipstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

const (
	BackendDisk = "disk"
	BackendGCS  = "gcs"

	DefaultMaxBytes int64 = 16 << 20

	sniffLen = 512

	// maxPlainKey bounds the readable part of an object name.
	maxPlainKey = 64
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Store keeps payment slip images. Refs returned by Put are opaque to callers.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Close() error
}

type Options struct {
	Backend  string
	Dir      string
	Bucket   string
	Prefix   string
	MaxBytes int64
}

func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendDisk:
		return NewDiskStore(opts.Dir, opts.MaxBytes)
	case BackendGCS:
		return NewGCSStore(ctx, opts.Bucket, opts.Prefix, opts.MaxBytes)
	default:
		return nil, fmt.Errorf("unknown slip backend %q", opts.Backend)
	}
}

// sniff checks the leading bytes are an accepted image and returns its
// content type along with a reader that replays the whole body.
func sniff(r io.Reader) (string, string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", nil, fmt.Errorf("read slip: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", "", nil, fmt.Errorf("%w: empty file", domain.ErrInvalidSlip)
	}

	contentType := http.DetectContentType(head)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", "", nil, fmt.Errorf("%w: unsupported content type %s", domain.ErrInvalidSlip, contentType)
	}

	return contentType, ext, io.MultiReader(bytes.NewReader(head), r), nil
}

// objectName keeps short safe keys as they are. Any other key is sanitised
// and given a digest suffix after "~", a character no safe key contains, so
// two distinct keys never map to the same object.
func objectName(key, ext string) string {
	safe := unsafeKeyChars.ReplaceAllString(key, "_")
	if safe == key && key != "" && len(key) <= maxPlainKey {
		return key + ext
	}

	if len(safe) > maxPlainKey {
		safe = safe[:maxPlainKey]
	}
	sum := sha256.Sum256([]byte(key))
	return safe + "~" + hex.EncodeToString(sum[:8]) + ext
}

func contentTypeFor(name string) string {
	for contentType, ext := range allowedTypes {
		if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
			return contentType
		}
	}
	return "application/octet-stream"
}

func tooLarge(maxBytes int64) error {
	return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidSlip, maxBytes)
}
