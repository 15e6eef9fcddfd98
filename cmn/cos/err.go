// Package cos provides common low-level types and utilities shared by
// pkgmirror's resolver, transport, and driver packages.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"syscall"

	"github.com/packetary-go/pkgmirror/cmn/debug"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
)

// Error taxonomy (spec.md §7): MalformedURL and MalformedIndex are fatal
// parse-time errors; TransientIO/RangeUnsupported are consumed by the
// byte transport's retry layer and only escalate once their budget is
// spent; PermanentHTTP, ToolMissing and SectionFailed are fatal to an
// operation; UnresolvedWarning is non-fatal and only ever reported.
type (
	ErrMalformedURL struct {
		Raw    string
		Reason string
	}
	ErrMalformedIndex struct {
		Repository string
		Record     string
		Reason     string
	}
	ErrTransientIO struct {
		Op  string
		Err error
	}
	ErrRangeUnsupported struct {
		URL string
	}
	ErrPermanentHTTP struct {
		URL    string
		Status int
	}
	ErrToolMissing struct {
		Tool string
	}
	ErrSectionFailed struct {
		FailedCount int
		Budget      int
	}
	ErrUnresolvedWarning struct {
		Count int
	}
	ErrNotFound struct {
		what string
	}
	ErrSignal struct {
		signal syscall.Signal
	}
)

func (e *ErrMalformedURL) Error() string {
	return fmt.Sprintf("malformed origin url %q: %s", e.Raw, e.Reason)
}

func (e *ErrMalformedIndex) Error() string {
	return fmt.Sprintf("malformed index record in %s: %s (record: %q)", e.Repository, e.Reason, e.Record)
}

func (e *ErrTransientIO) Error() string {
	return fmt.Sprintf("transient I/O error during %s: %v", e.Op, e.Err)
}
func (e *ErrTransientIO) Unwrap() error { return e.Err }

func (e *ErrRangeUnsupported) Error() string {
	return fmt.Sprintf("server does not support range requests: %s", e.URL)
}

func (e *ErrPermanentHTTP) Error() string {
	return fmt.Sprintf("permanent HTTP error %d for %s", e.Status, e.URL)
}

func (e *ErrToolMissing) Error() string {
	return fmt.Sprintf("required external tool not found: %s", e.Tool)
}

func (e *ErrSectionFailed) Error() string {
	return fmt.Sprintf("section failed: %d error(s) exceeded budget %d", e.FailedCount, e.Budget)
}

func (e *ErrUnresolvedWarning) Error() string {
	return fmt.Sprintf("%d relation(s) could not be resolved", e.Count)
}

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// Errs accumulates distinct errors (deduplicated by message) up to a
// small cap. The Async Section adds every task failure to one, as a
// sample of messages; its pass/fail decision and the SectionFailed error
// it raises use a separate per-task count, not Errs.
type Errs struct {
	errs []error
	mu   sync.Mutex
}

const maxErrs = 8

func (e *Errs) Add(err error) {
	debug.AssertNoErr(err)
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) JoinErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}

//
// syscall / transport error classification helpers. The byte
// transport's retry policy does not call these: it treats every failed
// HTTP round trip and every 5xx status as TransientIO.
//

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }
func IsErrOOS(err error) bool               { return errors.Is(err, syscall.ENOSPC) }

func IsRetriableConnErr(err error) bool {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err)
}

func isErrDNSLookup(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func Err2ClientURLErr(err error) *url.Error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr
	}
	return nil
}

func IsErrClientURLTimeout(err error) bool {
	uerr := Err2ClientURLErr(err)
	return uerr != nil && uerr.Timeout()
}

// IsUnreachable classifies a transport-level error (plus an optional
// HTTP status, 0 if none came back) as TransientIO rather than
// PermanentHTTP.
func IsUnreachable(err error, status int) bool {
	return IsRetriableConnErr(err) ||
		isErrDNSLookup(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		IsErrClientURLTimeout(err) ||
		status == http.StatusRequestTimeout ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusBadGateway ||
		status == http.StatusGatewayTimeout
}

//
// ErrSignal - out-of-band process shutdown (spec.md §4.3, §5)
//

func (e *ErrSignal) ExitCode() int               { return 128 + int(e.signal) }
func NewSignalError(s syscall.Signal) *ErrSignal { return &ErrSignal{signal: s} }
func (e *ErrSignal) Error() string               { return fmt.Sprintf("signal %d", e.signal) }

//
// abnormal termination
//

const fatalPrefix = "FATAL ERROR: "

func Exitf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	_exit(msg)
}

func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	if flag.Parsed() {
		nlog.ErrorDepth(1, msg)
		nlog.Flush(true)
	}
	_exit(msg)
}

func _exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
