// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs fire-and-forget background jobs.
//
// The chat coordinator hands message persistence to a Runner so a slow or
// failing history write never holds up the stream or reaches the UI.
// Failures are logged and kept in the job history.
//
// # Key Types
//
//   - Job: one unit of background work with status and timing
//   - JobStatus: Queued, Running, Complete, Failed, Canceled
//   - Runner: bounded-concurrency executor with per-job timeouts
//
// # Usage
//
//	runner := tasks.NewRunner(tasks.Options{MaxConcurrent: 2, Timeout: 30 * time.Second})
//	defer runner.Stop()
//
//	_, err := runner.Submit("persist messages", conversationID, func(ctx context.Context) error {
//	    return client.SaveMessage(ctx, model, conversationID, msg)
//	})
//
//	runner.Wait() // block until every submitted job has finished
package tasks
