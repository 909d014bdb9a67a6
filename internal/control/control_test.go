package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWaitPauseResume(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(context.Background())
	defer c.Cancel()
	ctx := c.Context()

	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait on running control = %v", err)
	}

	c.Pause()
	if !c.Paused() {
		t.Fatal("Paused = false after Pause")
	}

	done := make(chan error, 1)
	go func() { done <- Wait(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Wait returned %v while paused", err)
	case <-time.After(50 * time.Millisecond):
	}

	c.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait after Resume = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Resume")
	}
	if c.Paused() {
		t.Error("Paused = true after Resume")
	}
}

func TestCancelUnblocksPausedWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(context.Background())
	c.Pause()

	done := make(chan error, 1)
	go func() { done <- c.Wait(c.Context()) }()
	c.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Cancel")
	}
	if !c.Cancelled() {
		t.Error("Cancelled = false")
	}
}

func TestSleep(t *testing.T) {
	t.Run("cancel aborts", func(t *testing.T) {
		c := New(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			c.Cancel()
		}()
		start := time.Now()
		err := Sleep(c.Context(), time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Sleep = %v, want context.Canceled", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("Sleep did not abort promptly")
		}
	})

	t.Run("nil control", func(t *testing.T) {
		var c *Control
		if c.Paused() || c.Cancelled() {
			t.Error("nil control reports paused or cancelled")
		}
		c.Pause()
		c.Resume()
		c.Cancel()
		if err := c.Sleep(context.Background(), time.Millisecond); err != nil {
			t.Errorf("Sleep = %v", err)
		}
		if From(context.Background()) != nil {
			t.Error("From(background) != nil")
		}
	})
}

func TestTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(context.Background())
	defer c.Cancel()

	select {
	case <-TimerFor(c.Context()).After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	c.Pause()
	ch := c.Timer(c.Context()).After(time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired while paused")
	case <-time.After(50 * time.Millisecond):
	}
	c.Cancel()
	select {
	case <-ch:
		t.Fatal("timer fired after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
