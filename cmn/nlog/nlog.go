// Package nlog is pkgmirror's logger: leveled, depth-aware, with
// size-based rotation to a log directory. Adapted from aistore's
// cmn/nlog down to the volume a CLI mirror tool actually produces:
// a single mutex-guarded buffered writer shared by all severities instead of the
// teacher's double-buffer swap/flush pipeline, which exists there to
// keep a storage node's hot path lock-free under far higher log rates.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

// MaxSize is the per-file rotation threshold.
var MaxSize int64 = 4 * 1024 * 1024

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	title        string

	mu   sync.Mutex
	w    *bufio.Writer
	f    *os.File
	size int64
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetLogDirRole sets the destination directory for file-backed logs;
// role is folded into the rotated file name (e.g. "mirror").
func SetLogDirRole(dir, role string) {
	mu.Lock()
	defer mu.Unlock()
	logDir, title = dir, role
}

func SetTitle(s string) {
	mu.Lock()
	title = s
	mu.Unlock()
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }

func log(sev severity, depth int, format string, args ...any) {
	line := formatLine(sev, depth+1, format, args...)

	mu.Lock()
	defer mu.Unlock()

	if toStderr || sev >= sevWarn || alsoToStderr {
		os.Stderr.WriteString(line)
	}
	if toStderr {
		return
	}
	if err := ensureFile(); err != nil {
		return
	}
	n, _ := w.WriteString(line)
	size += int64(n)
	if size >= MaxSize {
		rotate()
	}
}

func formatLine(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// under mu
func ensureFile() error {
	if f != nil {
		return nil
	}
	if logDir == "" {
		toStderr = true
		return fmt.Errorf("no log directory set")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		toStderr = true
		return err
	}
	return openNew()
}

// under mu
func openNew() error {
	name := fmt.Sprintf("%s.%s.log", title, time.Now().Format("20060102-150405"))
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	f = file
	w = bufio.NewWriterSize(f, 32*1024)
	size = 0
	return nil
}

// under mu
func rotate() {
	w.Flush()
	f.Sync()
	f.Close()
	f = nil
	openNew()
}

// Flush writes buffered log data to disk; pass true on process exit to
// also fsync and close the underlying file.
func Flush(exit ...bool) {
	mu.Lock()
	defer mu.Unlock()
	if w != nil {
		w.Flush()
	}
	if len(exit) > 0 && exit[0] && f != nil {
		f.Sync()
		f.Close()
		f = nil
	}
}
