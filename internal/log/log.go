// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package log implements the logging used by the tracing core. It is kept
// deliberately small: a single package-level Logger is swapped via UseLogger,
// and all emission funnels through a handful of level-gated helpers so that
// every subsystem (sampler, collector, remote-config client) logs the same
// way.
package log

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger implementations are able to log given a message and time interval.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}

// Level represents a logging level.
type Level int32

const (
	// LevelDebug represents debug level messages.
	LevelDebug Level = iota
	// LevelWarn represents warn level messages.
	LevelWarn
	// LevelError represents error level messages. This level is always logged.
	LevelError
)

var (
	mu             sync.RWMutex
	logger         Logger = &defaultLogger{l: newStdLogger()}
	levelThreshold        = LevelWarn
	prefixMsg             = "Datadog Tracer"
)

func newStdLogger() *stdLogger { return &stdLogger{} }

// stdLogger writes to stderr, matching the teacher's default behaviour of
// never requiring explicit logger configuration.
type stdLogger struct{ mu sync.Mutex }

func (s *stdLogger) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(os.Stderr, msg)
}

// defaultLogger wraps an underlying Logger; it exists so UseLogger(nil) can
// restore stderr output without special-casing nil checks at every call site.
type defaultLogger struct{ l Logger }

func (d *defaultLogger) Log(msg string) { d.l.Log(msg) }

// UseLogger sets l as the active logger and returns a function to restore
// the previously active logger.
func UseLogger(l Logger) (undo func()) {
	mu.Lock()
	old := logger
	if l == nil {
		l = &defaultLogger{l: newStdLogger()}
	}
	logger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		logger = old
		mu.Unlock()
	}
}

func active() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLevel sets the given lvl for logging.
func SetLevel(lvl Level) {
	mu.Lock()
	defer mu.Unlock()
	levelThreshold = lvl
}

func currentLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return levelThreshold
}

// DebugEnabled returns true if debug logging is enabled.
func DebugEnabled() bool { return currentLevel() <= LevelDebug }

func logf(lvl string, format string, params ...interface{}) {
	active().Log(fmt.Sprintf("%s %s: %s", prefixMsg, lvl, fmt.Sprintf(format, params...)))
}

// Debug prints the given message if the level is LevelDebug.
func Debug(format string, params ...interface{}) {
	if currentLevel() > LevelDebug {
		return
	}
	logf("DEBUG", format, params...)
}

// Warn prints a warning message.
func Warn(format string, params ...interface{}) {
	if currentLevel() > LevelWarn {
		return
	}
	logf("WARN", format, params...)
}

// Info prints an informational message. It is not level-gated: it is
// emitted at every level, like Error.
func Info(format string, params ...interface{}) { logf("INFO", format, params...) }

// errBucket batches identical error messages so a hot failure path doesn't
// spam the log sink.
type errBucket struct {
	count int
	msg   string
}

var (
	errMu        sync.Mutex
	errBuckets   = map[string]*errBucket{}
	errrate      = time.Minute
	defaultErrorLimit = 200
)

func init() {
	setLoggingRate(os.Getenv("DD_TRACE_LOGGING_RATE"))
}

func setLoggingRate(val string) {
	if val == "" {
		errrate = time.Minute
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		errrate = time.Minute
		return
	}
	errrate = time.Duration(n) * time.Second
}

// Error prints an error message, rate-limited per distinct format key.
func Error(format string, params ...interface{}) {
	key := format
	full := fmt.Sprintf(format, params...)
	errMu.Lock()
	defer errMu.Unlock()
	b, ok := errBuckets[key]
	if !ok {
		b = &errBucket{msg: full}
		errBuckets[key] = b
	}
	b.count++
	if errrate == 0 {
		flushBucketLocked(key, b)
		return
	}
	if b.count == 1 {
		time.AfterFunc(errrate, func() { Flush() })
	}
}

// Flush emits and clears any buffered error messages.
func Flush() {
	errMu.Lock()
	defer errMu.Unlock()
	for key, b := range errBuckets {
		flushBucketLocked(key, b)
		delete(errBuckets, key)
	}
}

func flushBucketLocked(_ string, b *errBucket) {
	switch {
	case b.count > defaultErrorLimit:
		logf("ERROR", "%s, %d+ additional messages skipped", b.msg, defaultErrorLimit)
	case b.count > 1:
		logf("ERROR", "%s, %d additional messages skipped", b.msg, b.count-1)
	default:
		logf("ERROR", "%s", b.msg)
	}
}

// DiscardLogger discards every message. Useful in tests and benchmarks.
type DiscardLogger struct{}

// Log implements Logger.
func (DiscardLogger) Log(string) {}

// RecordLogger records every logged message for inspection in tests. Messages
// containing an ignored substring are dropped, matching the teacher's
// appsec/tracer log separation.
type RecordLogger struct {
	mu      sync.Mutex
	lines   []string
	ignored []string
}

// Ignore causes future messages containing substr to be dropped.
func (r *RecordLogger) Ignore(substr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored = append(r.ignored, substr)
}

// Log implements Logger.
func (r *RecordLogger) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, substr := range r.ignored {
		if strings.Contains(msg, substr) {
			return
		}
	}
	r.lines = append(r.lines, msg)
}

// Logs returns every recorded message, in order.
func (r *RecordLogger) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Reset clears all recorded messages and ignore rules.
func (r *RecordLogger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
	r.ignored = nil
}

// LoggerFile is the name of the file written to when a log directory is
// configured via OpenFileAtPath.
const LoggerFile = "ddtrace.log"

// fileLogger is a Logger backed by an on-disk file, closeable concurrently
// and safely from multiple goroutines.
type fileLogger struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenFileAtPath opens (creating if necessary) LoggerFile inside dir,
// installs a Logger writing to it as the active logger, and returns it.
func OpenFileAtPath(dir string) (*fileLogger, error) {
	fp := dir + string(os.PathSeparator) + LoggerFile
	f, err := os.OpenFile(fp, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	fl := &fileLogger{file: f}
	UseLogger(fl)
	return fl, nil
}

// Log implements Logger.
func (f *fileLogger) Log(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	fmt.Fprintln(f.file, msg)
}

// Close closes the underlying file. Safe to call concurrently and more than
// once.
func (f *fileLogger) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.file.Close()
}
