// Package xsection implements the Async Section (spec.md §4.3): a
// scoped, bounded-concurrency executor with an error budget, grounded on
// the pack's errgroup-based fan-out/fan-in pattern (mirrorctl's
// HTTPClient.downloadFiles) and the teacher's cmn/cos.Errs accumulator.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xsection

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/cmn/debug"
)

// Handle is returned by Execute; Wait blocks until that task's closure
// has returned.
type Handle struct {
	done chan struct{}
	err  error
}

func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Section is a bounded worker pool plus an error budget (spec.md §4.3),
// built on errgroup.Group for the pool's admission/bookkeeping
// (SetLimit bounds concurrency exactly the way a semaphore would) while
// a per-task failure counter, not the group's own first-error, decides
// pass/fail: a plain
// (non-WithContext) Group never cancels its siblings on error, so every
// task runs to completion and every failure is counted against the
// budget instead of the fail-fast semantics errgroup.Group.Wait alone
// would give. ignoreErrorsBudget == 0 means fail-fast: a single task
// error is already fatal on Exit.
type Section struct {
	grp      errgroup.Group
	budget   int
	errs     cos.Errs
	failed   atomic.Int64
	draining atomic.Bool
	entered  atomic.Bool
}

func New(threadCount, ignoreErrorsBudget int) *Section {
	debug.Assert(threadCount >= 1, "thread_count must be >= 1")
	s := &Section{budget: ignoreErrorsBudget}
	s.grp.SetLimit(threadCount)
	return s
}

// Enter marks the scope active. Calling Execute before Enter, or Enter
// twice, is a programming error.
func (s *Section) Enter() {
	debug.Assert(!s.entered.Swap(true), "section entered twice")
}

// Execute submits task to the pool, blocking until a worker slot is
// free. A section that is draining (Drain was called) rejects new tasks
// without running them, by returning a Handle whose Wait immediately
// returns nil.
func (s *Section) Execute(task func() error) *Handle {
	h := &Handle{done: make(chan struct{})}
	if s.draining.Load() {
		close(h.done)
		return h
	}

	s.grp.Go(func() error {
		defer close(h.done)
		if err := task(); err != nil {
			h.err = err
			s.errs.Add(err)
			s.failed.Add(1)
			return err
		}
		return nil
	})
	return h
}

// Drain stops the section from admitting new tasks; in-flight tasks run
// to completion. Models the out-of-band process-shutdown signal of
// spec.md §4.3 ("stop accepting new tasks and drain").
func (s *Section) Drain() { s.draining.Store(true) }

// Exit waits for every in-flight task and, on a normal (non-panicking)
// scope exit, raises ErrSectionFailed if the number of tasks that
// failed exceeds the budget (spec.md §4.3: "abort if more than N tasks
// have failed" - a task count, not a count of distinct error messages,
// so this is tracked separately from errs, which only dedups messages
// for logging). The group's own Wait error is discarded - it only ever
// reports the first failure, and the budget decision needs the full
// count.
func (s *Section) Exit() error {
	_ = s.grp.Wait()
	if n := int(s.failed.Load()); n > s.budget {
		return &cos.ErrSectionFailed{FailedCount: n, Budget: s.budget}
	}
	return nil
}

// ExitAbnormal waits for in-flight work without raising SectionFailed;
// used when the caller is already unwinding due to some other fatal
// error and only needs the section's goroutines to quiesce.
func (s *Section) ExitAbnormal() {
	_ = s.grp.Wait()
}

// FailedCount reports the number of tasks that have failed so far.
func (s *Section) FailedCount() int { return int(s.failed.Load()) }
