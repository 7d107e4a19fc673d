package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestTask_UnsubmittedDoesNotBlock verifies a fresh task's gate starts open
// Given: A task that was never submitted
// When: WaitUntilComplete is called with an infinite and a zero timeout
// Then: Both return true immediately
func TestTask_UnsubmittedDoesNotBlock(t *testing.T) {
	// Arrange
	task := NewTask("fresh", func(ctx context.Context) {})

	// Act and Assert
	if !task.WaitUntilComplete(-1) {
		t.Fatal("WaitUntilComplete(-1) on fresh task = false, want true")
	}
	if !task.WaitUntilComplete(0) {
		t.Fatal("WaitUntilComplete(0) on fresh task = false, want true")
	}
	if !task.IsComplete() {
		t.Fatal("IsComplete() on fresh task = false, want true")
	}
}

// TestTask_WaitSemantics verifies blocking between reset and release
// Given: A task whose wait block was reset (simulated submission)
// When: WaitUntilComplete(100ms) is called before it runs, then after it is released
// Then: The first wait times out and the second succeeds
func TestTask_WaitSemantics(t *testing.T) {
	// Arrange
	task := NewTask("pending", func(ctx context.Context) {})
	task.ResetWaitBlock()

	// Act and Assert - not run yet
	start := time.Now()
	if task.WaitUntilComplete(100 * time.Millisecond) {
		t.Fatal("WaitUntilComplete(100ms) before release = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("WaitUntilComplete returned after %v, want ~100ms", elapsed)
	}

	// Act - run and release as a worker would
	task.Run(context.Background())
	task.ReleaseWaitBlock()

	// Assert
	if !task.WaitUntilComplete(0) {
		t.Fatal("WaitUntilComplete(0) after release = false, want true")
	}
	if !task.WaitUntilComplete(50 * time.Millisecond) {
		t.Fatal("WaitUntilComplete(50ms) after release = false, want true")
	}
}

// TestTask_WaitUnblocksOnRelease verifies a parked waiter resumes on release
// Given: A reset task and a goroutine waiting on it forever
// When: ReleaseWaitBlock is called
// Then: The waiter returns true
func TestTask_WaitUnblocksOnRelease(t *testing.T) {
	task := NewTask("waited", nil)
	task.ResetWaitBlock()

	result := make(chan bool, 1)
	go func() { result <- task.WaitUntilComplete(-1) }()

	time.Sleep(20 * time.Millisecond)
	task.ReleaseWaitBlock()

	select {
	case ok := <-result:
		if !ok {
			t.Fatal("WaitUntilComplete(-1) = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

// TestTask_WaitContext verifies context-aware waiting
// Given: A reset task
// When: Wait is called with a context that expires
// Then: It returns the context error
func TestTask_WaitContext(t *testing.T) {
	task := NewTask("ctx", nil)
	task.ResetWaitBlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() = %v, want context.DeadlineExceeded", err)
	}

	task.ReleaseWaitBlock()
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("Wait() after release = %v, want nil", err)
	}
}

func TestTask_KeepAndIdentity(t *testing.T) {
	var calls atomic.Int32
	task := NewKeepTask("periodic", func(ctx context.Context) { calls.Add(1) })

	if !task.Keep() {
		t.Fatal("NewKeepTask().Keep() = false, want true")
	}
	task.SetKeep(false)
	if task.Keep() {
		t.Fatal("Keep() after SetKeep(false) = true, want false")
	}

	other := NewTask("periodic", nil)
	if task.ID() == "" || task.ID() == other.ID() {
		t.Fatalf("task IDs should be unique and non-empty: %q vs %q", task.ID(), other.ID())
	}
	if task.Name() != "periodic" {
		t.Errorf("Name() = %q, want periodic", task.Name())
	}

	task.Run(context.Background())
	task.Run(context.Background())
	if calls.Load() != 2 || task.Executions() != 2 {
		t.Errorf("calls = %d, executions = %d, want 2 and 2", calls.Load(), task.Executions())
	}
}
