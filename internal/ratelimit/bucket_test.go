package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/chatcache/chatcache/internal/ratelimit"
)

func TestBucket_AllowsBurstThenBlocks(t *testing.T) {
	b := ratelimit.New(60, 2) // 1/sec refill, burst 2

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := b.Wait(ctx); err != nil {
		t.Fatalf("first token should be immediately available: %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("second token (burst) should be immediately available: %v", err)
	}

	// Third call exceeds burst and the refill rate is slower than the
	// context deadline, so it should time out rather than block forever.
	if err := b.Wait(ctx); err == nil {
		t.Fatal("expected third call to block past the context deadline")
	}
}

func TestBucket_RefillsOverTime(t *testing.T) {
	b := ratelimit.New(6000, 1) // 100/sec refill, burst 1

	ctx := context.Background()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("first token: %v", err)
	}

	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("second token after refill: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("refill took too long: %v", time.Since(start))
	}
}
