// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// JOB STATUS
// =============================================================================

// JobStatus represents the current state of a background job.
type JobStatus string

const (
	// JobQueued means the job is waiting for a worker slot.
	JobQueued JobStatus = "Queued"

	// JobRunning means the job is executing.
	JobRunning JobStatus = "Running"

	// JobComplete means the job returned nil.
	JobComplete JobStatus = "Complete"

	// JobFailed means the job returned an error or timed out.
	JobFailed JobStatus = "Failed"

	// JobCanceled means the runner stopped before or during the job.
	JobCanceled JobStatus = "Canceled"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobFailed || s == JobCanceled
}

// =============================================================================
// JOB
// =============================================================================

// Func is the work a job performs. ctx carries the job timeout.
type Func func(ctx context.Context) error

// Job is a unit of background work.
type Job struct {
	ID             string
	Description    string
	ConversationID string

	run Func

	mu        sync.RWMutex
	status    JobStatus
	queuedAt  time.Time
	startedAt time.Time
	endedAt   time.Time
	err       error
}

// newJob creates a queued job.
func newJob(description, conversationID string, run Func) *Job {
	return &Job{
		ID:             uuid.New().String(),
		Description:    description,
		ConversationID: conversationID,
		run:            run,
		status:         JobQueued,
		queuedAt:       time.Now(),
	}
}

// transition moves the job to status. Valid transitions are
// Queued -> Running -> Complete/Failed/Canceled and Queued -> Canceled.
func (j *Job) transition(to JobStatus, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !validTransition(j.status, to) {
		return fmt.Errorf("invalid status transition from %s to %s", j.status, to)
	}

	now := time.Now()
	j.status = to
	switch to {
	case JobRunning:
		j.startedAt = now
	case JobComplete, JobFailed, JobCanceled:
		j.endedAt = now
		j.err = err
	}
	return nil
}

func validTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobRunning || to == JobCanceled
	case JobRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// Status returns the job's current status.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Err returns the failure cause for failed jobs.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Duration returns how long the job ran, or has been running.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.startedAt.IsZero() {
		return 0
	}
	if j.endedAt.IsZero() {
		return time.Since(j.startedAt)
	}
	return j.endedAt.Sub(j.startedAt)
}

// Snapshot is a point-in-time copy of a job for display.
type Snapshot struct {
	ID             string
	Description    string
	ConversationID string
	Status         JobStatus
	QueuedAt       time.Time
	StartedAt      time.Time
	EndedAt        time.Time
	Error          string
}

// Snapshot returns a copy of the job's state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Snapshot{
		ID:             j.ID,
		Description:    j.Description,
		ConversationID: j.ConversationID,
		Status:         j.status,
		QueuedAt:       j.queuedAt,
		StartedAt:      j.startedAt,
		EndedAt:        j.endedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
