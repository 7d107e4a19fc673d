package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGate_OpenCloseIdempotent(t *testing.T) {
	g := NewGate(false)
	if g.IsOpen() {
		t.Fatal("NewGate(false).IsOpen() = true")
	}

	g.Open()
	g.Open()
	if !g.IsOpen() {
		t.Fatal("IsOpen() after Open = false")
	}

	g.Close()
	g.Close()
	if g.IsOpen() {
		t.Fatal("IsOpen() after Close = true")
	}
	if g.Wait(0) {
		t.Fatal("Wait(0) on closed gate = true")
	}
}

// TestGate_OpenWakesAllWaiters verifies the gate is level-triggered
// Given: Several goroutines parked on a closed gate
// When: The gate is opened once
// Then: Every waiter wakes, even if the gate is closed again right after
func TestGate_OpenWakesAllWaiters(t *testing.T) {
	g := NewGate(false)

	const waiters = 5
	var wg sync.WaitGroup
	woke := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			woke <- g.Wait(time.Second)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	g.Open()
	g.Close()
	wg.Wait()
	close(woke)

	for ok := range woke {
		if !ok {
			t.Fatal("a waiter timed out instead of waking")
		}
	}
}

func TestGate_WaitContextCancelled(t *testing.T) {
	g := NewGate(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if g.WaitContext(ctx, time.Second) {
		t.Fatal("WaitContext with cancelled ctx = true, want false")
	}

	g.Open()
	if !g.WaitContext(ctx, time.Second) {
		t.Fatal("WaitContext on open gate = false, want true")
	}
}
