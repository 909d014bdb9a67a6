// Package invoke issues one generation request against an ordered list of
// backends, classifying each attempt and applying the matching retry or
// fallback policy.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/quire/internal/backoff"
	"github.com/jackzampolin/quire/internal/control"
	"github.com/jackzampolin/quire/internal/llmcall"
	"github.com/jackzampolin/quire/internal/providers"
)

// ErrNoBackends is returned by New when no backend is configured.
var ErrNoBackends = errors.New("no backend configured")

var (
	errSwitch      = errors.New("backend gave up")
	errEmptyBudget = errors.New("empty-response budget exhausted")
)

// Backend is one candidate provider/model, tried in priority order.
type Backend = providers.Backend

// Request is one generation call.
type Request struct {
	Label       string // task label for logs and the call log
	System      string
	Prompt      string
	Temperature float64        // 0 uses Config.Temperature
	MaxTokens   int            // 0 uses Config.MaxTokens
	Schema      map[string]any // optional structured-output hint
}

// Config configures an Invoker.
type Config struct {
	Backends []Backend

	CallTimeout time.Duration // Hard wall-clock limit per call (default: 180s)

	EmptySwitchAfter int           // Consecutive empties before moving to the next backend (default: 2)
	EmptyBudget      int           // Total empties per request before giving up (default: 8)
	EmptyDelay       time.Duration // Wait after an empty reply (default: 2s)

	RateLimitRetries int           // Retries on one backend after rate limiting (default: 3)
	RateLimitDelay   time.Duration // Wait when the provider gave no hint (default: 30s)

	TransientRetries int           // Retries on one backend after other failures (default: 3)
	TransientBase    time.Duration // First transient backoff (default: 4s)
	TransientMax     time.Duration // Transient backoff cap (default: 30s)

	Temperature float64 // Default temperature (default: 0.7)
	MaxTokens   int     // Default output limit (default: 8000)

	Recorder *llmcall.Recorder // Optional call log
	JobID    string
	Logger   *slog.Logger
}

// Invoker runs requests against its backends. It holds no per-request state
// and is safe for concurrent use.
type Invoker struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Invoker, error) {
	if len(cfg.Backends) == 0 {
		return nil, ErrNoBackends
	}
	for _, b := range cfg.Backends {
		if b.Client == nil {
			return nil, fmt.Errorf("backend %q has no client", b.Name)
		}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 180 * time.Second
	}
	if cfg.EmptySwitchAfter <= 0 {
		cfg.EmptySwitchAfter = 2
	}
	if cfg.EmptyBudget <= 0 {
		cfg.EmptyBudget = 8
	}
	if cfg.EmptyDelay < 0 {
		cfg.EmptyDelay = 0
	} else if cfg.EmptyDelay == 0 {
		cfg.EmptyDelay = 2 * time.Second
	}
	if cfg.RateLimitRetries <= 0 {
		cfg.RateLimitRetries = 3
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = 30 * time.Second
	}
	if cfg.TransientRetries <= 0 {
		cfg.TransientRetries = 3
	}
	if cfg.TransientBase <= 0 {
		cfg.TransientBase = 4 * time.Second
	}
	if cfg.TransientMax <= 0 {
		cfg.TransientMax = 30 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{cfg: cfg, logger: cfg.Logger}, nil
}

// WithJob returns a copy that tags recorded calls with jobID.
func (inv *Invoker) WithJob(jobID string) *Invoker {
	cp := *inv
	cp.cfg.JobID = jobID
	cp.logger = inv.logger.With("job_id", jobID)
	return &cp
}

// Backends returns the configured backends in priority order.
func (inv *Invoker) Backends() []Backend {
	out := make([]Backend, len(inv.cfg.Backends))
	copy(out, inv.cfg.Backends)
	return out
}

// Invoke returns the first non-empty text any backend produces, or "" when
// every backend is exhausted, the empty budget runs out, or ctx is cancelled.
// "" is terminal for the request; callers must not retry it.
func (inv *Invoker) Invoke(ctx context.Context, req Request) string {
	logger := inv.logger.With("task", req.Label)

	rf, err := providers.NewResponseFormat(req.Schema)
	if err != nil {
		logger.Warn("dropping structured output hint", "error", err)
		rf = nil
	}
	call := callSpec{req: req, format: rf, messages: messages(req)}
	if call.req.Temperature <= 0 {
		call.req.Temperature = inv.cfg.Temperature
	}
	if call.req.MaxTokens <= 0 {
		call.req.MaxTokens = inv.cfg.MaxTokens
	}

	st := &taskState{}
	for i, b := range inv.cfg.Backends {
		if ctx.Err() != nil {
			return ""
		}
		last := i == len(inv.cfg.Backends)-1
		text, err := inv.tryBackend(ctx, b, last, call, st, logger)
		switch {
		case err == nil:
			return text
		case ctx.Err() != nil:
			logger.Info("invocation cancelled")
			return ""
		case errors.Is(err, errEmptyBudget):
			logger.Warn("empty-response budget exhausted", "empties", st.empties)
			return ""
		}
		if !last {
			logger.Info("switching backend", "from", b.Name, "to", inv.cfg.Backends[i+1].Name, "reason", err)
		}
	}
	logger.Warn("all backends exhausted", "backends", len(inv.cfg.Backends))
	return ""
}

type callSpec struct {
	req      Request
	format   *providers.ResponseFormat
	messages []providers.Message
}

// taskState is shared by all backends of one request.
type taskState struct {
	empties int
}

// tryBackend loops on one backend until success or until its budgets run out.
func (inv *Invoker) tryBackend(ctx context.Context, b Backend, last bool, call callSpec, st *taskState, logger *slog.Logger) (string, error) {
	var (
		text       string
		empties    int // consecutive, this backend
		rateLimits int
		transients int
	)

	policy := backoff.Policy{
		Backoff: func(_ int, err error) time.Duration {
			var o *Outcome
			if !errors.As(err, &o) {
				return 0
			}
			switch o.Kind {
			case RateLimited:
				if o.Delay > 0 {
					return o.Delay
				}
				return inv.cfg.RateLimitDelay
			case TransientError:
				return backoff.Exponential(inv.cfg.TransientBase, inv.cfg.TransientMax)(transients, err)
			case EmptyResponse:
				return inv.cfg.EmptyDelay
			}
			return 0
		},
	}

	err := policy.Do(ctx, control.TimerFor(ctx), func(attempt int) error {
		if err := control.Wait(ctx); err != nil {
			return backoff.Stop(err)
		}
		out := inv.attempt(ctx, b, call, attempt, logger)
		if out.Kind != EmptyResponse {
			empties = 0
		}

		switch out.Kind {
		case Success:
			text = out.Text
			return nil
		case EmptyResponse:
			empties++
			st.empties++
			if st.empties >= inv.cfg.EmptyBudget {
				return backoff.Stop(errEmptyBudget)
			}
			if !last && empties >= inv.cfg.EmptySwitchAfter {
				return backoff.Stop(fmt.Errorf("%w: %d consecutive empty responses", errSwitch, empties))
			}
		case RateLimited:
			rateLimits++
			if rateLimits > inv.cfg.RateLimitRetries {
				return backoff.Stop(fmt.Errorf("%w: still rate limited after %d retries", errSwitch, inv.cfg.RateLimitRetries))
			}
		case TransientError:
			transients++
			if transients > inv.cfg.TransientRetries {
				return backoff.Stop(fmt.Errorf("%w: %v", errSwitch, out.Err))
			}
		case ProviderExhausted:
			return backoff.Stop(fmt.Errorf("%w: quota exhausted: %v", errSwitch, out.Err))
		}
		return &out
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// attempt issues one call under the wall-clock limit and records it.
func (inv *Invoker) attempt(ctx context.Context, b Backend, call callSpec, attempt int, logger *slog.Logger) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := b.Client.Chat(callCtx, &providers.ChatRequest{
		Messages:       call.messages,
		Model:          b.Model,
		Temperature:    call.req.Temperature,
		MaxTokens:      call.req.MaxTokens,
		ResponseFormat: call.format,
		Attempt:        attempt,
	})
	latency := time.Since(start)
	if ctx.Err() != nil {
		return Outcome{Kind: TransientError, Err: ctx.Err()}
	}

	out := classify(callCtx, resp, err)
	inv.cfg.Recorder.Record(resp, err, llmcall.RecordOptions{
		JobID:       inv.cfg.JobID,
		Label:       call.req.Label,
		Backend:     b.Name,
		Model:       b.Model,
		Attempt:     attempt,
		Temperature: call.req.Temperature,
		Outcome:     out.Kind.String(),
		Latency:     latency,
	})

	switch out.Kind {
	case Success:
		logger.Debug("call succeeded", "backend", b.Name, "attempt", attempt, "latency", latency, "chars", len(out.Text))
	case EmptyResponse:
		logger.Warn("empty response", "backend", b.Name, "attempt", attempt)
	case RateLimited:
		logger.Warn("rate limited", "backend", b.Name, "attempt", attempt, "retry_after", out.Delay)
	default:
		logger.Warn("call failed", "backend", b.Name, "attempt", attempt, "outcome", out.Kind, "error", out.Err)
	}
	return out
}

func messages(req Request) []providers.Message {
	var msgs []providers.Message
	if req.System != "" {
		msgs = append(msgs, providers.Message{Role: "system", Content: req.System})
	}
	return append(msgs, providers.Message{Role: "user", Content: req.Prompt})
}
