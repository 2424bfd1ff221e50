package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/podium-gg/podium/internal/adapters/mq/queue"
	"github.com/podium-gg/podium/internal/core/pipeline"
	"github.com/podium-gg/podium/internal/domain/model"
)

// countingSubmitter records every submission it receives.
type countingSubmitter struct {
	mu   sync.Mutex
	subs []model.Submission
	err  error
}

func (c *countingSubmitter) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, sub)
	return model.SubmissionResult{Accepted: c.err == nil}, c.err
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func waitForCount(t *testing.T, c *countingSubmitter, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d submissions, got %d", want, c.count())
}

func TestWorker_ProcessesUntilQueueCloses(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(16))
	sub := &countingSubmitter{}

	w := New(q, sub, WithName("test-worker"))
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		if !q.Enqueue(ctx, model.Submission{PlayerID: "p1", BaseName: "arena", Score: int64(i)}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	waitForCount(t, sub, 5)

	q.Close()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after queue close")
	}
}

func TestWorker_RejectionsAreNotFailures(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(4))
	defer q.Close()

	sub := &countingSubmitter{err: pipeline.ErrRateLimited}
	w := New(q, sub)
	go w.Run(ctx)

	q.Enqueue(ctx, model.Submission{PlayerID: "p1", BaseName: "arena"})
	waitForCount(t, sub, 1)

	// A rejected submission must not stop the worker.
	q.Enqueue(ctx, model.Submission{PlayerID: "p2", BaseName: "arena"})
	waitForCount(t, sub, 2)
}

func TestWorker_Shutdown(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(4))
	defer q.Close()

	w := New(q, &countingSubmitter{})
	go w.Run(ctx)

	if err := w.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestPool_DrainsQueueOnShutdown(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(256))
	sub := &countingSubmitter{}

	p := NewPool(4, q, sub)
	p.Start(ctx)

	const total = 100
	for i := 0; i < total; i++ {
		if !q.Enqueue(ctx, model.Submission{PlayerID: model.PlayerID("p" + string(rune('a'+i%26))), BaseName: "arena", Score: int64(i)}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("pool shutdown: %v", err)
	}
	if got := sub.count(); got != total {
		t.Errorf("expected all %d submissions processed before shutdown returned, got %d", total, got)
	}
}

func TestPool_DrainsDespiteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemoryQueue(queue.WithCapacity(64))
	sub := &countingSubmitter{}

	p := NewPool(2, q, sub)
	p.Start(ctx)

	const total = 20
	for i := 0; i < total; i++ {
		if !q.Enqueue(context.Background(), model.Submission{PlayerID: "p1", BaseName: "arena", Score: int64(i)}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}

	// Shutdown after the signal context is already gone, as at process exit.
	cancel()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("pool shutdown: %v", err)
	}
	if got := sub.count(); got != total {
		t.Errorf("expected queued submissions drained after cancel, got %d of %d", got, total)
	}
}

func TestWorker_UnexpectedErrorKeepsRunning(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(4))
	defer q.Close()

	sub := &countingSubmitter{err: errors.New("storage exploded")}
	w := New(q, sub)
	go w.Run(ctx)

	q.Enqueue(ctx, model.Submission{PlayerID: "p1", BaseName: "arena"})
	q.Enqueue(ctx, model.Submission{PlayerID: "p2", BaseName: "arena"})
	waitForCount(t, sub, 2)
}
