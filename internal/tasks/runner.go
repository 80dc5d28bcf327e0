// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRunnerStopped is returned by Submit after Stop has been called.
var ErrRunnerStopped = errors.New("tasks: runner stopped")

const (
	defaultMaxConcurrent = 2
	defaultTimeout       = 30 * time.Second
	defaultMaxHistory    = 100
)

// Options configures a Runner. Zero values select defaults.
type Options struct {
	// MaxConcurrent bounds how many jobs run at once (default: 2).
	MaxConcurrent int

	// Timeout bounds each job (default: 30s, negative = no timeout).
	Timeout time.Duration

	// MaxHistory is how many finished jobs Jobs() keeps (default: 100).
	MaxHistory int

	// Logger receives job failures (default: slog.Default()).
	Logger *slog.Logger
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes submitted jobs in the background.
type Runner struct {
	semaphore chan struct{}
	timeout   time.Duration
	log       *slog.Logger

	mu         sync.Mutex
	wg         sync.WaitGroup
	stopped    atomic.Bool
	jobs       []*Job
	maxHistory int
}

// NewRunner creates a runner. It needs no Start call.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		semaphore:  make(chan struct{}, opts.MaxConcurrent),
		timeout:    opts.Timeout,
		log:        logger.With("component", "tasks"),
		maxHistory: opts.MaxHistory,
	}
}

// Submit queues fn and returns immediately. The job waits for a free
// worker slot on its own goroutine.
func (r *Runner) Submit(description, conversationID string, fn Func) (*Job, error) {
	if fn == nil {
		return nil, fmt.Errorf("tasks: nil job function")
	}

	r.mu.Lock()
	if r.stopped.Load() {
		r.mu.Unlock()
		return nil, ErrRunnerStopped
	}
	job := newJob(description, conversationID, fn)
	r.jobs = append(r.jobs, job)
	r.trimLocked()
	r.wg.Add(1)
	r.mu.Unlock()

	go r.execute(job)
	return job, nil
}

// Wait blocks until every job submitted so far has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop rejects new submissions and waits for queued and running jobs.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped.Store(true)
	r.mu.Unlock()
	r.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (r *Runner) Stopped() bool {
	return r.stopped.Load()
}

// Jobs returns snapshots of known jobs, oldest first.
func (r *Runner) Jobs() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.Snapshot()
	}
	return out
}

// =============================================================================
// EXECUTION
// =============================================================================

func (r *Runner) execute(job *Job) {
	defer r.wg.Done()

	r.semaphore <- struct{}{}
	defer func() { <-r.semaphore }()

	_ = job.transition(JobRunning, nil)

	ctx, cancel := r.jobContext()
	defer cancel()

	err := r.runSafely(ctx, job)

	switch {
	case err == nil:
		_ = job.transition(JobComplete, nil)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("job timeout after %v: %w", r.timeout, err)
		_ = job.transition(JobFailed, err)
	case errors.Is(err, context.Canceled):
		_ = job.transition(JobCanceled, err)
	default:
		_ = job.transition(JobFailed, err)
	}

	if err != nil {
		r.log.Warn("background job failed",
			"job", job.Description,
			"job_id", job.ID,
			"conversation_id", job.ConversationID,
			"error", err)
	} else {
		r.log.Debug("background job complete",
			"job", job.Description,
			"duration", job.Duration())
	}

	r.mu.Lock()
	r.trimLocked()
	r.mu.Unlock()
}

func (r *Runner) jobContext() (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(context.Background(), r.timeout)
	}
	return context.WithCancel(context.Background())
}

// RELIABILITY: a panicking job is recorded as failed instead of taking
// down the process.
func (r *Runner) runSafely(ctx context.Context, job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job.run(ctx)
}

// trimLocked drops the oldest finished jobs beyond maxHistory.
func (r *Runner) trimLocked() {
	excess := len(r.jobs) - r.maxHistory
	if excess <= 0 {
		return
	}
	kept := r.jobs[:0]
	for _, j := range r.jobs {
		if excess > 0 && j.Status().IsTerminal() {
			excess--
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(r.jobs); i++ {
		r.jobs[i] = nil
	}
	r.jobs = kept
}
