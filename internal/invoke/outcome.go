package invoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackzampolin/quire/internal/providers"
)

// Kind classifies one call attempt.
type Kind int

const (
	Success Kind = iota
	EmptyResponse
	RateLimited
	TransientError
	ProviderExhausted
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case EmptyResponse:
		return "empty"
	case RateLimited:
		return "rate_limited"
	case TransientError:
		return "transient"
	case ProviderExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classified result of one attempt. It is consumed by the
// retry loop and never persisted.
type Outcome struct {
	Kind  Kind
	Text  string
	Delay time.Duration // RateLimited only; zero means no hint
	Err   error
}

// Error lets an Outcome travel through the retry policy as the attempt error.
func (o *Outcome) Error() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Err)
	}
	return o.Kind.String()
}

func (o *Outcome) Unwrap() error { return o.Err }

// classify maps a call result onto an Outcome. The call context is inspected
// so that a hit wall-clock limit counts as transient.
func classify(callCtx context.Context, resp *providers.Response, err error) Outcome {
	if err == nil {
		text := providers.ExtractText(resp)
		if text == "" {
			return Outcome{Kind: EmptyResponse}
		}
		return Outcome{Kind: Success, Text: text}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Outcome{Kind: TransientError, Err: fmt.Errorf("call timed out: %w", err)}
	}

	if pe, ok := providers.AsError(err); ok {
		switch pe.Class {
		case providers.ClassQuotaExhausted:
			return Outcome{Kind: ProviderExhausted, Err: err}
		case providers.ClassRateLimited:
			return Outcome{Kind: RateLimited, Delay: pe.RetryAfter, Err: err}
		}
		switch pe.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			// Credentials or model name are wrong; retrying this backend cannot help.
			return Outcome{Kind: ProviderExhausted, Err: err}
		}
		return Outcome{Kind: TransientError, Err: err}
	}

	// Untyped errors are still checked for rate-limit and quota wording.
	switch providers.ClassifyStatus(0, err.Error()) {
	case providers.ClassQuotaExhausted:
		return Outcome{Kind: ProviderExhausted, Err: err}
	case providers.ClassRateLimited:
		return Outcome{Kind: RateLimited, Delay: providers.ParseRetryDelay(err.Error()), Err: err}
	}
	return Outcome{Kind: TransientError, Err: err}
}
