// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package tracerror defines the error taxonomy shared across the tracer
// core: configuration validation, context extraction, payload encoding, and
// transport failures. Every kind is a sentinel errors.Is can match against,
// so callers can branch on failure category without string comparison.
package tracerror

import "fmt"

// Kind categorizes an Error.
type Kind string

const (
	// KindConfig marks a configuration validation failure, returned from
	// tracer start-up.
	KindConfig Kind = "config"
	// KindExtraction marks a failure to extract a valid trace context from
	// a carrier.
	KindExtraction Kind = "extraction"
	// KindEncoding marks a failure to encode a trace chunk for transport.
	KindEncoding Kind = "encoding"
	// KindTransport marks a failure communicating with the agent.
	KindTransport Kind = "transport"
	// KindOverflow marks a dropped item due to a full internal buffer.
	KindOverflow Kind = "overflow"
)

// Error is the concrete error type returned by this module's public API.
// It supports errors.Is against its Kind via a sentinel comparison, and
// errors.Unwrap for the underlying cause, if any.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a sentinel for e's Kind, so callers can do
// errors.Is(err, tracerror.Extraction) without comparing strings.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.Kind
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinels for use with errors.Is(err, tracerror.Extraction), etc.
var (
	Config     error = kindSentinel(KindConfig)
	Extraction error = kindSentinel(KindExtraction)
	Encoding   error = kindSentinel(KindEncoding)
	Transport  error = kindSentinel(KindTransport)
	Overflow   error = kindSentinel(KindOverflow)
)

// New builds an Error of the given kind with no underlying cause.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}
