// Package control carries the cooperative cancel and pause signal of one job.
//
// A Control travels inside the job's context. Every suspension point (backoff
// sleeps, waits between tasks) calls Wait or Sleep, which block while the job is
// paused and return immediately once it is cancelled. A nil *Control is valid and
// never pauses.
package control

import (
	"context"
	"sync"
	"time"
)

type ctxKey struct{}

// Control is the cancel/pause handle shared by a job and its caller.
type Control struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	resume chan struct{} // non-nil while paused; closed on Resume
}

// New returns a Control whose context derives from parent.
func New(parent context.Context) *Control {
	c := &Control{}
	ctx, cancel := context.WithCancel(parent)
	c.ctx = context.WithValue(ctx, ctxKey{}, c)
	c.cancel = cancel
	return c
}

// From returns the Control carried by ctx, or nil.
func From(ctx context.Context) *Control {
	c, _ := ctx.Value(ctxKey{}).(*Control)
	return c
}

// Context returns the job context; it is cancelled by Cancel and carries c.
func (c *Control) Context() context.Context {
	if c == nil {
		return context.Background()
	}
	return c.ctx
}

// Cancel stops the job. Blocked waits return at once.
func (c *Control) Cancel() {
	if c == nil {
		return
	}
	c.cancel()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (c *Control) Cancelled() bool {
	return c != nil && c.ctx.Err() != nil
}

// Pause suspends the job at its next suspension point.
func (c *Control) Pause() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resume == nil {
		c.resume = make(chan struct{})
	}
}

// Resume releases a paused job.
func (c *Control) Resume() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
}

// Paused reports whether the job is paused.
func (c *Control) Paused() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume != nil
}

func (c *Control) done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.ctx.Done()
}

func (c *Control) resumed() <-chan struct{} {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume
}

func (c *Control) err(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c != nil {
		return c.ctx.Err()
	}
	return nil
}

// Wait blocks while the job is paused. It returns a non-nil error once ctx or
// the job is cancelled.
func (c *Control) Wait(ctx context.Context) error {
	for {
		if err := c.err(ctx); err != nil {
			return err
		}
		ch := c.resumed()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
		case <-c.done():
		}
	}
}

// Sleep waits d, then waits out any pause. Cancellation aborts it immediately.
func (c *Control) Sleep(ctx context.Context, d time.Duration) error {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		case <-c.done():
		}
	}
	return c.Wait(ctx)
}

// Timer adapts Sleep for retry loops. The returned channel fires after the sleep
// and any pause; it never fires once the job is cancelled.
func (c *Control) Timer(ctx context.Context) Timer {
	return Timer{c: c, ctx: ctx}
}

// Timer satisfies backoff.Timer.
type Timer struct {
	c   *Control
	ctx context.Context
}

// After implements backoff.Timer.
func (t Timer) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		if err := t.c.Sleep(t.ctx, d); err == nil {
			ch <- time.Now()
		}
	}()
	return ch
}

// Wait is From(ctx).Wait(ctx).
func Wait(ctx context.Context) error {
	return From(ctx).Wait(ctx)
}

// Sleep is From(ctx).Sleep(ctx, d).
func Sleep(ctx context.Context, d time.Duration) error {
	return From(ctx).Sleep(ctx, d)
}

// TimerFor returns a pause-aware timer for the Control carried by ctx.
func TimerFor(ctx context.Context) Timer {
	return From(ctx).Timer(ctx)
}
