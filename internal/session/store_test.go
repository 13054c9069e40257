package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestRememberAndRecall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RememberEntity(ctx, "conv-1", "light.kitchen"); err != nil {
		t.Fatalf("RememberEntity() error: %v", err)
	}

	got, err := s.LastEntity(ctx, "conv-1")
	if err != nil {
		t.Fatalf("LastEntity() error: %v", err)
	}
	if got != "light.kitchen" {
		t.Errorf("LastEntity() = %q", got)
	}
}

func TestLastEntityUnknownConversation(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LastEntity(context.Background(), "conv-unknown")
	if err != nil {
		t.Fatalf("LastEntity() error: %v", err)
	}
	if got != "" {
		t.Errorf("LastEntity() = %q, want empty", got)
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.RememberEntity(ctx, "conv-1", "light.kitchen")
	_ = s.RememberEntity(ctx, "conv-2", "lock.front")

	got, _ := s.LastEntity(ctx, "conv-1")
	if got != "light.kitchen" {
		t.Errorf("conv-1 entity = %q", got)
	}
	got, _ = s.LastEntity(ctx, "conv-2")
	if got != "lock.front" {
		t.Errorf("conv-2 entity = %q", got)
	}
}

func TestForget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.RememberEntity(ctx, "conv-1", "light.kitchen")
	if err := s.Forget(ctx, "conv-1"); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}

	got, _ := s.LastEntity(ctx, "conv-1")
	if got != "" {
		t.Errorf("LastEntity() after Forget = %q", got)
	}
}

// All methods must be safe on a nil store: session memory is optional.
func TestNilStore(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if err := s.RememberEntity(ctx, "c", "e"); err != nil {
		t.Errorf("nil RememberEntity() error: %v", err)
	}
	if got, err := s.LastEntity(ctx, "c"); err != nil || got != "" {
		t.Errorf("nil LastEntity() = %q, %v", got, err)
	}
	if err := s.Forget(ctx, "c"); err != nil {
		t.Errorf("nil Forget() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil Close() error: %v", err)
	}
}
