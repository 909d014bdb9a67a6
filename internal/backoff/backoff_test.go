package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// instantTimer records requested waits and fires immediately.
type instantTimer struct {
	waits []time.Duration
}

func (t *instantTimer) After(d time.Duration) <-chan time.Time {
	t.waits = append(t.waits, d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

var errFlaky = errors.New("flaky")

func TestPolicyDo(t *testing.T) {
	t.Run("succeeds after retries", func(t *testing.T) {
		timer := &instantTimer{}
		p := Policy{MaxAttempts: 4, Backoff: Exponential(4*time.Second, 30*time.Second)}

		var attempts []int
		err := p.Do(context.Background(), timer, func(attempt int) error {
			attempts = append(attempts, attempt)
			if attempt < 3 {
				return errFlaky
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do error = %v", err)
		}
		if diff := cmp.Diff([]int{1, 2, 3}, attempts); diff != "" {
			t.Errorf("attempts (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]time.Duration{4 * time.Second, 8 * time.Second}, timer.waits); diff != "" {
			t.Errorf("waits (-want +got):\n%s", diff)
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		calls := 0
		err := Policy{MaxAttempts: 3}.Do(context.Background(), &instantTimer{}, func(int) error {
			calls++
			return errFlaky
		})
		if !errors.Is(err, errFlaky) {
			t.Errorf("Do error = %v, want errFlaky", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("stop ends immediately", func(t *testing.T) {
		calls := 0
		err := Policy{}.Do(context.Background(), &instantTimer{}, func(int) error {
			calls++
			return Stop(errFlaky)
		})
		if err != errFlaky {
			t.Errorf("Do error = %v, want unwrapped errFlaky", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retriable filter", func(t *testing.T) {
		fatal := errors.New("fatal")
		calls := 0
		p := Policy{MaxAttempts: 5, Retriable: func(err error) bool { return !errors.Is(err, fatal) }}
		err := p.Do(context.Background(), &instantTimer{}, func(int) error {
			calls++
			if calls == 2 {
				return fatal
			}
			return errFlaky
		})
		if !errors.Is(err, fatal) || calls != 2 {
			t.Errorf("Do = %v after %d calls, want fatal after 2", err, calls)
		}
	})

	t.Run("cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := Policy{MaxAttempts: 5}.Do(ctx, &instantTimer{}, func(int) error {
			cancel()
			return errFlaky
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do error = %v, want context.Canceled", err)
		}
	})
}

func TestExponential(t *testing.T) {
	f := Exponential(4*time.Second, 30*time.Second)
	var got []time.Duration
	for attempt := 1; attempt <= 5; attempt++ {
		got = append(got, f(attempt, nil))
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Exponential (-want +got):\n%s", diff)
	}
	if d := Fixed(time.Second)(9, errFlaky); d != time.Second {
		t.Errorf("Fixed = %v", d)
	}
}
