// Package worker drains the submission queue through the scoring pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/podium-gg/podium/internal/core/pipeline"
	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Submitter commits a submission to its target boards.
type Submitter interface {
	Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Worker processes submissions until stopped.
type Worker struct {
	queue     Queue
	submitter Submitter
	name      string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// New creates a worker with configuration options.
func New(queue Queue, submitter Submitter, opts ...Option) *Worker {
	w := &Worker{
		queue:     queue,
		submitter: submitter,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		log:       logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop until ctx is canceled, the queue closes, or
// Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	subs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case sub, ok := <-subs:
			if !ok {
				return
			}
			w.process(ctx, sub)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, sub model.Submission) {
	start := time.Now()
	_, err := w.submitter.Submit(ctx, sub)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		// Rejections are expected outcomes, not worker faults; the
		// pipeline already counted them by kind.
		if errors.Is(err, pipeline.ErrInvalidScore) ||
			errors.Is(err, pipeline.ErrRateLimited) ||
			errors.Is(err, pipeline.ErrAntiCheatRejected) ||
			errors.Is(err, pipeline.ErrAntiCheatUnavailable) {
			w.log.Debug(ctx, "submission rejected",
				logger.String("player", string(sub.PlayerID)),
				logger.String("board", sub.BaseName),
				logger.Error(err),
			)
			return
		}
		metrics.RecordWorkerError()
		w.log.Error(ctx, "submission failed",
			logger.String("player", string(sub.PlayerID)),
			logger.String("board", sub.BaseName),
			logger.Error(err),
		)
	}
}

// Pool manages a fixed set of workers draining one queue.
type Pool struct {
	workers []*Worker
	queue   Queue

	shutdown chan struct{}
	log      logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to a
// multiple of the CPU count.
func NewPool(count int, queue Queue, submitter Submitter) *Pool {
	if count < 1 {
		count = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*Worker, count),
		queue:    queue,
		shutdown: make(chan struct{}),
		log:      logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(queue, submitter, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(count)
	return p
}

// Start launches all workers in the pool. Workers run detached from ctx
// cancellation so that queued submissions still drain during shutdown;
// their lifecycle is bound to the queue, which Shutdown closes.
func (p *Pool) Start(ctx context.Context) {
	run := context.WithoutCancel(ctx)
	for _, w := range p.workers {
		go w.Run(run)
	}
}

// Shutdown closes the queue and stops all workers, waiting up to the pool
// shutdown timeout. Queued submissions are drained before workers exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.log.Error(ctx, "closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.log.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
