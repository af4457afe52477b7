// Package blob retrieves uploaded documents by opaque key from an object store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Store is the narrow contract the pipeline depends on.
type Store interface {
	// Get returns the document for key. Errors satisfy errors.Is with
	// common.ErrNotFound or common.ErrStoreUnavailable; the retryable subset
	// additionally matches common.ErrStoreTransient.
	Get(ctx context.Context, key string) (entity.Document, error)
}

// Writer is implemented by stores that can stage new documents (local, memory).
type Writer interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(key string) bool
}

// StoreError carries the taxonomy kind of a blob failure.
type StoreError struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("blob %s %q: %v: %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("blob %s %q: %v", e.Op, e.Key, e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches the taxonomy kind. Transient failures are a subset of unavailability.
func (e *StoreError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == common.ErrStoreTransient && target == common.ErrStoreUnavailable
}

func notFound(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Kind: common.ErrNotFound, Err: err}
}

func unavailable(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Kind: common.ErrStoreUnavailable, Err: err}
}

func transient(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Kind: common.ErrStoreTransient, Err: err}
}

// NewTransientError lets adapters and test doubles report a retryable failure.
func NewTransientError(key string, err error) error { return transient("get", key, err) }

// classify turns a backend error that has no more specific mapping into a StoreError.
// ctx must be the caller's context: only its cancellation is reported bare, a
// deadline hit by a single attempt is transient.
func classify(ctx context.Context, op, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isTransientNetErr(err) {
		return transient(op, key, err)
	}
	return unavailable(op, key, err)
}

func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// readLimited reads r fully, failing once more than max bytes arrive.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, common.CorruptDocument(nil, "object exceeds %d bytes", max)
	}
	return data, nil
}

// cleanKey rejects keys that could escape a prefix or root.
func cleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if k == "" {
		return "", common.NewAppError("INVALID_KEY", "document key is required", common.ErrInvalidInput)
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." {
			return "", common.NewAppError("INVALID_KEY", fmt.Sprintf("document key %q escapes store root", key), common.ErrInvalidInput)
		}
	}
	return k, nil
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg common.BlobConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Root, cfg.MaxObjectBytes, logger)
	case "memory":
		return NewMemoryStore(), nil
	case "gcs":
		return NewGCSStore(ctx, GCSConfig{
			Bucket:         cfg.Bucket,
			Prefix:         cfg.Prefix,
			Endpoint:       cfg.Endpoint,
			MaxObjectBytes: cfg.MaxObjectBytes,
			Timeout:        cfg.Timeout,
		}, logger)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:         cfg.Bucket,
			Prefix:         cfg.Prefix,
			Endpoint:       cfg.Endpoint,
			Region:         cfg.Region,
			MaxObjectBytes: cfg.MaxObjectBytes,
			Timeout:        cfg.Timeout,
		}, logger)
	}
	return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown blob backend %q", cfg.Backend), common.ErrInvalidInput)
}
