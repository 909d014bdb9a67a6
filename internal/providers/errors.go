package providers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorClass is the machine-readable failure class of a provider error.
type ErrorClass string

const (
	ClassOther          ErrorClass = "other"
	ClassRateLimited    ErrorClass = "rate_limited"
	ClassQuotaExhausted ErrorClass = "quota_exhausted"
)

// Error is returned by clients for failures reported by the provider.
type Error struct {
	Provider   string
	Class      ErrorClass
	StatusCode int
	Message    string
	RetryAfter time.Duration // zero when the provider gave no hint
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d, %s): %s", e.Provider, e.StatusCode, e.Class, e.Message)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Provider, e.Class, e.Message)
}

// NewError classifies a provider failure. The delay hint comes from the
// Retry-After header when present, else from the message text.
func NewError(provider string, status int, message string, header http.Header) *Error {
	e := &Error{
		Provider:   provider,
		Class:      ClassifyStatus(status, message),
		StatusCode: status,
		Message:    strings.TrimSpace(message),
	}
	if header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	if e.RetryAfter == 0 {
		e.RetryAfter = ParseRetryDelay(message)
	}
	return e
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

var (
	quotaZeroRe = regexp.MustCompile(`(?i)limit["']?\s*[:=]?\s*0(?:[^0-9.]|$)`)

	quotaMarkers = []string{
		"insufficient_quota",
		"billing",
		"credit balance is too low",
		"payment required",
		"insufficient credits",
	}
	rateMarkers = []string{
		"rate limit",
		"rate_limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
		"overloaded",
		"quota exceeded",
	}
)

// ClassifyStatus maps an HTTP status and message onto an ErrorClass. A quota
// whose limit is zero, or a billing failure, is permanent for the backend.
func ClassifyStatus(status int, message string) ErrorClass {
	lower := strings.ToLower(message)
	if quotaZeroRe.MatchString(message) || status == http.StatusPaymentRequired {
		return ClassQuotaExhausted
	}
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return ClassQuotaExhausted
		}
	}
	if status == http.StatusTooManyRequests {
		return ClassRateLimited
	}
	for _, m := range rateMarkers {
		if strings.Contains(lower, m) {
			return ClassRateLimited
		}
	}
	return ClassOther
}

var retryDelayRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry\s*delay["']?\s*[:=]\s*["']?([0-9]+(?:\.[0-9]+)?)\s*(ms|s)?`),
	regexp.MustCompile(`(?i)retry\s+(?:in|after)\s+([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|secs|seconds?)?\b`),
}

// ParseRetryDelay extracts a suggested wait such as "Please retry in 37.5s" or
// `"retryDelay": "20s"` from a provider message. It returns zero when none is found.
func ParseRetryDelay(message string) time.Duration {
	for _, re := range retryDelayRes {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil || f <= 0 {
			continue
		}
		unit := time.Second
		if strings.EqualFold(m[2], "ms") {
			unit = time.Millisecond
		}
		return time.Duration(f * float64(unit))
	}
	return 0
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
