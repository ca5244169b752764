package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type fakeProcessor struct {
	mu    sync.Mutex
	paths []string
	delay time.Duration
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, path string) (entity.Outcome, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return entity.Outcome{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if path == "bad.pdf" {
		return entity.Failed(errors.New("File not found: bad.pdf")), nil
	}
	return entity.Succeeded(entity.Fields{"filePath": path}, nil), nil
}

func TestProcessorQueue_ProcessesAllJobsBeforeShutdown(t *testing.T) {
	proc := &fakeProcessor{}
	var mu sync.Mutex
	results := map[string]bool{}
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(1), WithResultFunc(func(job Job, out entity.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[job.Path] = err == nil && out.Success
	}))

	for _, p := range []string{"a.pdf", "b.pdf", "bad.pdf", "c.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), NewJob(p)))
	}
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf", "bad.pdf", "c.pdf"}, proc.paths)
	assert.Equal(t, map[string]bool{"a.pdf": true, "b.pdf": true, "bad.pdf": false, "c.pdf": true}, results)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), NewJob("late.pdf"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_JobTimeout(t *testing.T) {
	proc := &fakeProcessor{delay: time.Second}
	errs := make(chan error, 1)
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond),
		WithResultFunc(func(_ Job, _ entity.Outcome, err error) { errs <- err }))

	require.NoError(t, q.Enqueue(context.Background(), NewJob("slow.pdf")))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not time out")
	}
	q.Shutdown(context.Background())
}

func TestProcessorQueue_EnqueueBackpressureHonoursContext(t *testing.T) {
	block := make(chan struct{})
	proc := &blockingProcessor{release: block, started: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), NewJob("1.pdf")))
	<-proc.started
	require.NoError(t, q.Enqueue(context.Background(), NewJob("2.pdf")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, NewJob("3.pdf"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingProcessor struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingProcessor) ProcessFile(_ context.Context, path string) (entity.Outcome, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return entity.Succeeded(entity.Fields{"filePath": path}, nil), nil
}
