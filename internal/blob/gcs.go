package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// GCSConfig configures the Cloud Storage adapter. Endpoint targets an emulator.
type GCSConfig struct {
	Bucket         string
	Prefix         string
	Endpoint       string
	MaxObjectBytes int64
	Timeout        time.Duration
}

// GCSStore reads documents from a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    GCSConfig
	logger *slog.Logger
}

func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(cfg.Bucket), cfg: cfg, logger: logger}, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (entity.Document, error) {
	k, err := cleanKey(key)
	if err != nil {
		return entity.Document{}, err
	}
	parent := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	r, err := s.bucket.Object(path.Join(s.cfg.Prefix, k)).NewReader(ctx)
	if err != nil {
		return entity.Document{}, s.mapErr(parent, key, err)
	}
	defer func(r *storage.Reader) {
		if err := r.Close(); err != nil {
			s.logger.Warn("blob.gcs.close.failed", "key", key, "err", err)
		}
	}(r)

	data, err := readLimited(r, s.cfg.MaxObjectBytes)
	if err != nil {
		if common.IsFatalInput(err) {
			return entity.Document{}, err
		}
		return entity.Document{}, s.mapErr(parent, key, err)
	}
	return entity.Document{
		Key:         key,
		ContentType: r.Attrs.ContentType,
		Size:        int64(len(data)),
		UploadedAt:  r.Attrs.LastModified.UTC(),
		Data:        data,
	}, nil
}

// mapErr classifies a reader failure against the caller's ctx.
func (s *GCSStore) mapErr(ctx context.Context, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return notFound("get", key, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return notFound("get", key, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			s.logger.Warn("blob.gcs.transient", "key", key, "code", gerr.Code)
			return transient("get", key, err)
		default:
			return unavailable("get", key, err)
		}
	}
	return classify(ctx, "get", key, err)
}

func (s *GCSStore) Close() error { return s.client.Close() }
