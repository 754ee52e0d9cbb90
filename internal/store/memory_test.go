package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_GetPutDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	turn := StoredTurn{Model: "openai/gpt-4.1"}
	if err := s.Put(ctx, "resp_1", turn, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(ctx, "resp_1")
	if err != nil || got.Model != "openai/gpt-4.1" {
		t.Fatalf("got %+v, err %v", got, err)
	}

	ok, err := s.Delete(ctx, "resp_1")
	if err != nil || !ok {
		t.Fatalf("expected first delete to report existed, got %v/%v", ok, err)
	}
	ok, err = s.Delete(ctx, "resp_1")
	if err != nil || ok {
		t.Fatalf("expected second delete to be idempotent (ok=false, no error), got %v/%v", ok, err)
	}
}

func TestMemoryStore_ExpiredEntryIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "resp_1", StoredTurn{}, time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, err := s.Get(ctx, "resp_1"); err != ErrNotFound {
		t.Fatalf("expected expired entry to report ErrNotFound, got %v", err)
	}
}
