package tracing

import (
	"context"
	"testing"
)

func TestInit(t *testing.T) {
	if err := Init(Config{ServiceName: "parley-test", ServiceVersion: "0.0.1", SampleRatio: 0.5}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Repeated initialization is a no-op
	if err := Init(Config{ServiceName: "other"}); err != nil {
		t.Fatalf("repeated Init failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "parley/test", "test.span")
	if GetTraceID(ctx) == "" {
		t.Error("StartSpan did not record a trace ID")
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}
