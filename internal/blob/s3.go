package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// S3Config configures the S3 adapter. Endpoint targets S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket         string
	Prefix         string
	Endpoint       string
	Region         string
	MaxObjectBytes int64
	Timeout        time.Duration
}

// S3Store reads documents from an S3 bucket.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
	logger *slog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, cfg: cfg, logger: logger}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (entity.Document, error) {
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

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(path.Join(s.cfg.Prefix, k)),
	})
	if err != nil {
		return entity.Document{}, s.mapErr(parent, key, err)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			s.logger.Warn("blob.s3.close.failed", "key", key, "err", err)
		}
	}()

	data, err := readLimited(out.Body, s.cfg.MaxObjectBytes)
	if err != nil {
		if common.IsFatalInput(err) {
			return entity.Document{}, err
		}
		return entity.Document{}, s.mapErr(parent, key, err)
	}
	doc := entity.Document{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Size:        int64(len(data)),
		Data:        data,
	}
	if out.LastModified != nil {
		doc.UploadedAt = out.LastModified.UTC()
	}
	return doc, nil
}

// mapErr classifies a GetObject failure. ctx is the caller's context, not the
// per-attempt one, so an attempt timeout stays retryable.
func (s *S3Store) mapErr(ctx context.Context, key string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nsb) {
		return notFound("get", key, err)
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		switch {
		case code == http.StatusNotFound:
			return notFound("get", key, err)
		case code == 0 || code == http.StatusTooManyRequests || code >= 500 || isTransientNetErr(err):
			s.logger.Warn("blob.s3.transient", "key", key, "code", code)
			return transient("get", key, err)
		default:
			return unavailable("get", key, err)
		}
	}
	return classify(ctx, "get", key, err)
}
