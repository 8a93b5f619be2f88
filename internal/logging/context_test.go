package logging

import (
	"context"
	"testing"
)

func TestFromContext_DefaultWhenAbsent(t *testing.T) {
	l := FromContext(context.Background())
	if l != Default() {
		t.Error("expected FromContext to fall back to the default logger")
	}
}

func TestNewContextAndFromContext_RoundTrip(t *testing.T) {
	custom := Default().WithComponent("test")
	ctx := NewContext(context.Background(), custom)
	if got := FromContext(ctx); got != custom {
		t.Error("expected FromContext to retrieve the logger stored by NewContext")
	}
}

func TestWithTraceContext_SetsTraceID(t *testing.T) {
	ctx, l := WithTraceContext(context.Background())
	if l == nil {
		t.Fatal("expected a non-nil logger")
	}
	if l.traceID == "" {
		t.Error("expected a non-empty trace ID")
	}
	if got := FromContext(ctx); got != l {
		t.Error("expected the context to carry the same logger returned")
	}
}

func TestRequestContext_TagsFields(t *testing.T) {
	l := RequestContext("binance", "BTCUSDT", "1h")
	if l.component != "fcp" {
		t.Errorf("expected component fcp, got %q", l.component)
	}
}
