package common

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if TraceIDFromContext(ctx) != "" {
		t.Error("empty context has a trace id")
	}
	if LoggerFromContext(ctx, nil) != slog.Default() {
		t.Error("nil fallback should be slog.Default")
	}

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil)).With("run_id", "r1")
	ctx = WithLogger(WithTraceID(ctx, "t1"), l)
	if TraceIDFromContext(ctx) != "t1" {
		t.Errorf("trace id = %q", TraceIDFromContext(ctx))
	}
	LoggerFromContext(ctx, slog.Default()).Info("hello")
	if !strings.Contains(buf.String(), "run_id=r1") {
		t.Errorf("log output = %q", buf.String())
	}
}
