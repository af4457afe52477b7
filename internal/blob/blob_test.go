package blob

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("Balance Sheet\nTotal assets 100\n")
	if err := s.Put(ctx, "acme/2023/bs.txt", data, constants.ContentTypeText); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := s.Get(ctx, "acme/2023/bs.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(doc.Data, data) {
		t.Errorf("data mismatch: %q", doc.Data)
	}
	if doc.ContentType != constants.ContentTypeText {
		t.Errorf("content type = %q", doc.ContentType)
	}
	if doc.Size != int64(len(data)) {
		t.Errorf("size = %d", doc.Size)
	}
	if !s.Exists("acme/2023/bs.txt") {
		t.Error("Exists() = false after put")
	}
}

func TestLocalStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), 8, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Get(ctx, "missing.pdf")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing key: want ErrNotFound, got %v", err)
	}
	if common.IsRetryable(err) {
		t.Error("not found must not be retryable")
	}

	if err := s.Put(ctx, "big.txt", []byte("more than eight bytes"), ""); err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(ctx, "big.txt")
	if !errors.Is(err, common.ErrCorruptDocument) {
		t.Errorf("oversized: want ErrCorruptDocument, got %v", err)
	}

	_, err = s.Get(ctx, "../etc/passwd")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("escaping key: want ErrInvalidInput, got %v", err)
	}
}

func TestStoreErrorIs(t *testing.T) {
	tr := NewTransientError("k", errors.New("timeout"))
	if !errors.Is(tr, common.ErrStoreTransient) || !errors.Is(tr, common.ErrStoreUnavailable) {
		t.Errorf("transient error should match transient and unavailable: %v", tr)
	}
	un := unavailable("get", "k", errors.New("denied"))
	if errors.Is(un, common.ErrStoreTransient) {
		t.Error("plain unavailability must not be retryable")
	}
	if common.ErrorCode(tr) != common.CodeStoreTransient {
		t.Errorf("code = %s", common.ErrorCode(tr))
	}
}

func TestClassifyNetworkErrors(t *testing.T) {
	ctx := context.Background()
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if err := classify(ctx, "get", "k", opErr); !common.IsRetryable(err) {
		t.Errorf("dial errors are transient, got %v", err)
	}
	if err := classify(ctx, "get", "k", context.DeadlineExceeded); !common.IsRetryable(err) {
		t.Errorf("an attempt deadline under a live context is transient, got %v", err)
	}
	if err := classify(ctx, "get", "k", errors.New("access denied")); common.IsRetryable(err) {
		t.Errorf("generic errors are not transient, got %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := classify(cctx, "get", "k", opErr); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should win, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Get(ctx, "x"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if err := s.Put(ctx, "x", []byte("abc"), constants.ContentTypeCSV); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	doc.Data[0] = 'z'
	again, _ := s.Get(ctx, "x")
	if string(again.Data) != "abc" {
		t.Error("Get must return a copy")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), common.BlobConfig{Backend: "ftp"}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
