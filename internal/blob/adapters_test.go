package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

func newFakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ok.txt"):
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("Total assets 100"))
		case strings.HasSuffix(r.URL.Path, "/missing.pdf"):
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>no such key</Message></Error>`))
		case strings.HasSuffix(r.URL.Path, "/busy.pdf"):
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>SlowDown</Code><Message>slow down</Message></Error>`))
		case strings.HasSuffix(r.URL.Path, "/slow.pdf"):
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Store(url string, timeout time.Duration) *S3Store {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(url),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
		Retryer:      aws.NopRetryer{},
	})
	return &S3Store{
		client: client,
		cfg:    S3Config{Bucket: "statements", MaxObjectBytes: 1024, Timeout: timeout},
		logger: slog.Default(),
	}
}

func TestS3StoreGet(t *testing.T) {
	srv := newFakeS3(t)
	s := newTestS3Store(srv.URL, 100*time.Millisecond)

	doc, err := s.Get(context.Background(), "ok.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(doc.Data) != "Total assets 100" || doc.ContentType != "text/plain" {
		t.Errorf("doc = %q (%s)", doc.Data, doc.ContentType)
	}

	tests := []struct {
		key       string
		kind      error
		retryable bool
	}{
		{"missing.pdf", common.ErrNotFound, false},
		{"busy.pdf", common.ErrStoreTransient, true},
		{"slow.pdf", common.ErrStoreTransient, true},
		{"denied.pdf", common.ErrStoreUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := s.Get(context.Background(), tt.key)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("want %v, got %v", tt.kind, err)
			}
			if common.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v (code %s)", common.IsRetryable(err), tt.retryable, common.ErrorCode(err))
			}
		})
	}
}

func TestS3StoreCallerCancel(t *testing.T) {
	srv := newFakeS3(t)
	s := newTestS3Store(srv.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Get(ctx, "slow.pdf")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("caller deadline should surface bare, got %v", err)
	}
	if common.IsRetryable(err) {
		t.Error("caller cancellation must not be retried")
	}
}

func TestGCSMapErr(t *testing.T) {
	s := &GCSStore{logger: slog.Default()}
	tests := []struct {
		name      string
		err       error
		kind      error
		retryable bool
	}{
		{"object missing", storage.ErrObjectNotExist, common.ErrNotFound, false},
		{"api 404", &googleapi.Error{Code: http.StatusNotFound}, common.ErrNotFound, false},
		{"api 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, common.ErrStoreTransient, true},
		{"api 429", &googleapi.Error{Code: http.StatusTooManyRequests}, common.ErrStoreTransient, true},
		{"api 403", &googleapi.Error{Code: http.StatusForbidden}, common.ErrStoreUnavailable, false},
		{"attempt timeout", fmt.Errorf("read: %w", context.DeadlineExceeded), common.ErrStoreTransient, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.mapErr(context.Background(), "k", tt.err)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("want %v, got %v", tt.kind, err)
			}
			if common.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", common.IsRetryable(err), tt.retryable)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.mapErr(ctx, "k", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller should surface bare, got %v", err)
	}
}
