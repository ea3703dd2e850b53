package middleware

import (
	"context"
	"testing"
)

func TestRequestHashDeterministic(t *testing.T) {
	hash1 := RequestHash([]byte("payload"))
	hash2 := RequestHash([]byte("payload"))
	hash3 := RequestHash([]byte("other"))

	if hash1 != hash2 {
		t.Fatal("expected deterministic hash")
	}
	if hash1 == hash3 {
		t.Fatal("expected different hash for different payload")
	}
}

func TestNilIdempotencyStoreIsNoop(t *testing.T) {
	var store *IdempotencyStore
	if _, found, err := store.Check(context.Background(), "u1", "kpi.commit", "k1", "h"); found || err != nil {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if err := store.Save(context.Background(), "u1", "kpi.commit", "k1", "h", []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
