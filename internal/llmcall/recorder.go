package llmcall

import (
	"github.com/jackzampolin/quire/internal/providers"
)

// Recorder handles fire-and-forget call recording via a Sink.
// A nil Recorder, or one without a sink, records nothing.
type Recorder struct {
	sink *Sink
}

// NewRecorder creates a new call recorder.
func NewRecorder(sink *Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record captures a call asynchronously.
// This is non-blocking - the write is queued and batched.
func (r *Recorder) Record(resp *providers.Response, err error, opts RecordOptions) {
	if r == nil || r.sink == nil {
		return // No sink configured, skip recording
	}
	r.sink.Send(FromResponse(resp, err, opts))
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	r.sink.Send(call)
}
