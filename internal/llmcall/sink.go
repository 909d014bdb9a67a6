package llmcall

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// SinkConfig configures the write sink.
type SinkConfig struct {
	Writer        io.Writer
	BatchSize     int           // Flush after N calls (default: 50)
	FlushInterval time.Duration // Or after duration (default: 2s)
	QueueSize     int           // Buffer size (default: 1000)
	Logger        *slog.Logger
}

// Sink batches calls and appends them to a writer as JSON lines.
type Sink struct {
	logger *slog.Logger

	// Configuration
	batchSize     int
	flushInterval time.Duration

	// Internal state
	out     *bufio.Writer
	enc     *json.Encoder
	queue   chan *Call
	batch   []*Call
	flushCh chan chan struct{}

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewSink creates a new write sink.
func NewSink(cfg SinkConfig) *Sink {
	// Apply defaults
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := cfg.Writer
	if w == nil {
		w = io.Discard
	}

	out := bufio.NewWriter(w)
	return &Sink{
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		out:           out,
		enc:           json.NewEncoder(out),
		queue:         make(chan *Call, cfg.QueueSize),
		batch:         make([]*Call, 0, cfg.BatchSize),
		flushCh:       make(chan chan struct{}),
	}
}

// Start begins processing calls.
func (s *Sink) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runBatcher()
}

// Stop gracefully shuts down the sink, flushing remaining calls.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		s.wg.Wait()
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Send queues a call (fire-and-forget). Calls sent after Stop, or while
// the queue is full, are dropped with a warning.
func (s *Sink) Send(call *Call) {
	if call == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("sink closed, dropping call record", "label", call.Label)
		return
	}
	select {
	case s.queue <- call:
	default:
		s.logger.Warn("call log queue full, dropping call record", "label", call.Label)
	}
}

// Flush writes everything queued so far and waits until it is on the writer.
func (s *Sink) Flush(ctx context.Context) error {
	if s.ctx == nil {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runBatcher collects calls and flushes on size/time triggers.
func (s *Sink) runBatcher() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case call, ok := <-s.queue:
			if !ok {
				// Queue closed, flush remaining and exit
				s.flushBatch()
				return
			}
			s.batch = append(s.batch, call)
			if len(s.batch) >= s.batchSize {
				s.flushBatch()
			}

		case <-ticker.C:
			s.flushBatch()

		case done := <-s.flushCh:
			s.drainQueue()
			s.flushBatch()
			close(done)
		}
	}
}

// drainQueue moves already-queued calls into the batch without blocking.
func (s *Sink) drainQueue() {
	for {
		select {
		case call, ok := <-s.queue:
			if !ok {
				return
			}
			s.batch = append(s.batch, call)
		default:
			return
		}
	}
}

// flushBatch encodes the current batch. Only the batcher goroutine calls it.
func (s *Sink) flushBatch() {
	if len(s.batch) == 0 {
		return
	}
	calls := s.batch
	s.batch = make([]*Call, 0, s.batchSize)

	s.logger.Debug("flushing call log", "count", len(calls))
	for _, call := range calls {
		if err := s.enc.Encode(call); err != nil {
			s.logger.Error("failed to encode call record", "id", call.ID, "error", err)
		}
	}
	if err := s.out.Flush(); err != nil {
		s.logger.Error("failed to write call log", "error", err)
	}
}
