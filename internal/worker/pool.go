package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
)

var (
	// ErrTimeout is returned when a job exceeds its timeout. It also matches context.DeadlineExceeded.
	ErrTimeout = errors.New("worker: job timed out")
	// ErrPoolStopped is returned for jobs submitted to a stopped pool
	ErrPoolStopped = errors.New("worker: pool stopped")
)

type job struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// Pool runs jobs on a fixed number of workers. Callers block until their job
// finishes, times out or is cancelled.
type Pool struct {
	jobs       chan job
	logger     arbor.ILogger
	numWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool creates a pool with numWorkers workers (at least one)
func NewPool(logger arbor.ILogger, numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:       make(chan job),
		logger:     logger,
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the workers
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug().
			Int("num_workers", p.numWorkers).
			Msg("Starting worker pool")

		for i := 0; i < p.numWorkers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop stops accepting jobs and waits for running jobs to return
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Debug().Msg("Worker pool stopped")
	})
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			p.execute(workerID, j)
		}
	}
}

func (p *Pool) execute(workerID int, j job) {
	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}

	start := time.Now()
	err := <-common.SafeGo(p.logger, j.name, func() error {
		return j.fn(j.ctx)
	})

	p.logger.Debug().
		Int("worker_id", workerID).
		Str("job", j.name).
		Dur("duration", time.Since(start)).
		Bool("success", err == nil).
		Msg("Job finished")

	j.done <- err
}

// Do runs fn on a worker with ctx bounded by timeout (0 disables the bound).
// On timeout Do returns ErrTimeout without waiting for fn; fn sees its context cancelled.
func (p *Pool) Do(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	j := job{ctx: ctx, name: name, fn: fn, done: make(chan error, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return p.contextError(ctx, name, timeout)
	case <-p.ctx.Done():
		return ErrPoolStopped
	}

	select {
	case err := <-j.done:
		if err != nil && ctx.Err() != nil {
			return p.contextError(ctx, name, timeout)
		}
		return err
	case <-ctx.Done():
		return p.contextError(ctx, name, timeout)
	}
}

func (p *Pool) contextError(ctx context.Context, name string, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn().Str("job", name).Dur("timeout", timeout).Msg("Job timed out")
		return fmt.Errorf("%s: %w after %s: %w", name, ErrTimeout, timeout, context.DeadlineExceeded)
	}
	return ctx.Err()
}

// Run is Do for jobs that produce a value
func Run[T any](ctx context.Context, p *Pool, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out := make(chan T, 1)

	err := p.Do(ctx, name, timeout, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		out <- value
		return nil
	})
	if err != nil {
		return zero, err
	}
	return <-out, nil
}
