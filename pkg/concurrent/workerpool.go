// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is a named unit of work run by a WorkerPool.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// TaskError reports which task failed.
type TaskError struct {
	Name string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// WorkerPool represents a pool of workers that can process tasks concurrently
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Run executes all tasks using errgroup with goroutine limiting.
// Returns the first error encountered, and cancels the context passed to the remaining tasks.
func (wp *WorkerPool) Run(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, task := range tasks {
		g.Go(func() error {
			// Check if context was cancelled before starting
			if err := groupCtx.Err(); err != nil {
				return &TaskError{Name: task.Name, Err: err}
			}

			if err := task.Fn(groupCtx); err != nil {
				return &TaskError{Name: task.Name, Err: err}
			}
			return nil
		})
	}

	return g.Wait()
}

// RunAll executes all tasks without cancellation on error.
// Returns the non-nil errors in task order.
func (wp *WorkerPool) RunAll(ctx context.Context, tasks ...Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]error, len(tasks))

	// Use errgroup without context cancellation
	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = &TaskError{Name: task.Name, Err: err}
				return nil
			}

			if err := task.Fn(ctx); err != nil {
				results[i] = &TaskError{Name: task.Name, Err: err}
			}
			return nil // Always return nil to prevent errgroup from cancelling
		})
	}

	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
