package analyze

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Batching defaults: a batch flushes when it reaches maxBatchSize items
// or when flushInterval has elapsed since the first queued item,
// whichever comes first.
const (
	defaultFlushInterval = 2 * time.Second
	maxBatchSize         = 3
)

// batchItem is one queued analysis request with its reply channel.
type batchItem struct {
	req    Request
	result chan batchResult
}

type batchResult struct {
	analysis ScreenAnalysis
	err      error
}

// batcher collects LLM analysis requests and processes them in small
// batches. Items within a batch are sent serially; the batching exists to
// smooth bursts of captures, not to change request semantics.
type batcher struct {
	client   completer
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	queue []batchItem

	running bool
	armCh   chan struct{}
	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newBatcher(client completer, logger *zap.Logger) *batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &batcher{
		client:   client,
		interval: defaultFlushInterval,
		logger:   logger,
		armCh:    make(chan struct{}, 1),
		flushCh:  make(chan struct{}, 1),
	}
}

// Start launches the flush loop. Calling Start on a running batcher is a
// no-op.
func (b *batcher) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.run()
}

// Stop drains the queue (failing any unprocessed items) and waits for the
// flush loop to exit.
func (b *batcher) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	doneCh := b.doneCh
	b.mu.Unlock()

	<-doneCh
}

// Submit queues a request and blocks until its batch is processed or ctx
// is cancelled.
func (b *batcher) Submit(ctx context.Context, req Request) (ScreenAnalysis, error) {
	item := batchItem{req: req, result: make(chan batchResult, 1)}

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ScreenAnalysis{}, context.Canceled
	}
	b.queue = append(b.queue, item)
	n := len(b.queue)
	b.mu.Unlock()

	if n >= maxBatchSize {
		signal(b.flushCh)
	} else if n == 1 {
		signal(b.armCh)
	}

	select {
	case res := <-item.result:
		return res.analysis, res.err
	case <-ctx.Done():
		return ScreenAnalysis{}, ctx.Err()
	}
}

// signal performs a non-blocking send on a 1-buffered channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (b *batcher) run() {
	defer close(b.doneCh)

	timer := time.NewTimer(b.interval)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	disarm := func() {
		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
	}

	for {
		select {
		case <-b.stopCh:
			disarm()
			b.flush()
			b.failPending(context.Canceled)
			return

		case <-b.armCh:
			if !armed {
				timer.Reset(b.interval)
				armed = true
			}

		case <-b.flushCh:
			disarm()
			b.flush()
			// Items that arrived mid-flush restart the timer.
			if b.pending() > 0 {
				timer.Reset(b.interval)
				armed = true
			}

		case <-timer.C:
			armed = false
			b.flush()
			if b.pending() > 0 {
				timer.Reset(b.interval)
				armed = true
			}
		}
	}
}

func (b *batcher) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// flush takes the current queue and processes each item serially. One
// item failing does not affect the others.
func (b *batcher) flush() {
	b.mu.Lock()
	items := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(items) == 0 {
		return
	}

	b.logger.Debug("flushing analysis batch", zap.Int("size", len(items)))

	for _, item := range items {
		ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
		analysis, err := b.process(ctx, item.req)
		cancel()
		item.result <- batchResult{analysis: analysis, err: err}
	}
}

// process performs a single completion call; there is no retry here, the
// caller falls back to the heuristic result on error.
func (b *batcher) process(ctx context.Context, req Request) (ScreenAnalysis, error) {
	content, err := b.client.Complete(ctx, analysisPrompt, buildUserPrompt(req))
	if err != nil {
		return ScreenAnalysis{}, err
	}
	return parseAnalysisJSON(content, req)
}

// failPending answers any items that were queued after the final flush
// started.
func (b *batcher) failPending(err error) {
	b.mu.Lock()
	items := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, item := range items {
		item.result <- batchResult{err: err}
	}
}
