// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	for i := range 100 {
		q.Push(i)
	}
	if q.Len() != 100 {
		t.Fatalf("Len = %d, want 100", q.Len())
	}
	for want := range 100 {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if got != want {
			t.Fatalf("Pop = %d, want %d", got, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	t.Parallel()
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case v := <-got:
		t.Fatalf("Pop returned %q before any Push", v)
	case <-time.After(50 * time.Millisecond):
	}
	q.Push("hello")
	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Pop = %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueue_PopCancelled(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Pop on cancelled context = %v", err)
	}
}

func TestQueue_PushNeverBlocks(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10000 {
			q.Push(i)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Push blocked without a consumer")
	}
}
