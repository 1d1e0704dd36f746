package models

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingAgent struct {
	calls int32
	err   error
}

func (m *countingAgent) Generate(ctx context.Context, prompt string) (any, error) {
	n := atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	return prompt + "#" + string(rune('0'+n)), nil
}

func TestCachedLLM_Generate(t *testing.T) {
	mock := &countingAgent{}
	cached := NewCachedLLM(mock, 10, time.Minute)
	ctx := context.Background()

	first, err := cached.Generate(ctx, "hello")
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := cached.Generate(ctx, "hello")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached replay, got %q and %q", first, second)
	}
	if count := atomic.LoadInt32(&mock.calls); count != 1 {
		t.Errorf("expected 1 call (cached), got %d", count)
	}

	if _, err := cached.Generate(ctx, "world"); err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if count := atomic.LoadInt32(&mock.calls); count != 2 {
		t.Errorf("expected 2 calls, got %d", count)
	}
}

func TestCachedLLM_DoesNotCacheErrors(t *testing.T) {
	mock := &countingAgent{err: errors.New("down")}
	cached := NewCachedLLM(mock, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cached.Generate(ctx, "p"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if count := atomic.LoadInt32(&mock.calls); count != 2 {
		t.Fatalf("expected errors to bypass cache, got %d calls", count)
	}
}
