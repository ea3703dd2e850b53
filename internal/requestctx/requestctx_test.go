package requestctx

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithActor(WithRequestID(context.Background(), "req-1"), "u-1")
	if GetRequestID(ctx) != "req-1" {
		t.Fatalf("unexpected request id %q", GetRequestID(ctx))
	}
	if GetActor(ctx) != "u-1" {
		t.Fatalf("unexpected actor %q", GetActor(ctx))
	}
	if GetActor(context.Background()) != "" {
		t.Fatal("expected empty actor")
	}
}
