package analyze

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter records call times and returns a fixed minimal analysis.
type fakeCompleter struct {
	mu    sync.Mutex
	calls []time.Time
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	f.mu.Unlock()
	return `{"activity": "other"}`, nil
}

func (f *fakeCompleter) Available() bool { return true }

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestBatcherFlushesAtCap(t *testing.T) {
	client := &fakeCompleter{}
	b := newBatcher(client, nil)
	b.interval = 10 * time.Second // only the size cap should trigger
	b.Start()
	defer b.Stop()

	var wg sync.WaitGroup
	var errs atomic.Int32
	start := time.Now()
	for i := 0; i < maxBatchSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := b.Submit(ctx, Request{Text: "hello world"}); err != nil {
				errs.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, errs.Load())
	assert.Equal(t, maxBatchSize, client.callCount())
	assert.Less(t, time.Since(start), 5*time.Second, "size cap should flush before the timer")
}

func TestBatcherFlushesOnTimer(t *testing.T) {
	client := &fakeCompleter{}
	b := newBatcher(client, nil)
	b.interval = 50 * time.Millisecond
	b.Start()
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := b.Submit(ctx, Request{Text: "hello world"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "single item waits for the timer")
}

func TestBatcherSubmitAfterStop(t *testing.T) {
	b := newBatcher(&fakeCompleter{}, nil)
	b.Start()
	b.Stop()

	_, err := b.Submit(context.Background(), Request{Text: "late"})
	require.Error(t, err)
}
