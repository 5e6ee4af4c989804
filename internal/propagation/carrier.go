// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package propagation implements multi-format extraction and injection of
// trace context across Datadog, B3-multi, W3C Trace Context, and Baggage
// carriers, plus the reduction that merges several simultaneously extracted
// contexts into one, following dd-trace-cpp's extraction_util/w3c_propagation
// state machine and this teacher fork's chainedPropagator idiom.
package propagation

// Writer is the minimal carrier-write interface a codec injects headers
// into. Implementations adapt an http.Header, a plain map, or any other
// string-keyed carrier.
type Writer interface {
	Set(key, val string)
}

// Reader is the minimal carrier-read interface a codec extracts headers
// from.
type Reader interface {
	ForeachKey(handler func(key, val string) error) error
}

// MapCarrier adapts a plain map[string]string to both Writer and Reader,
// the simplest carrier used throughout this package's tests.
type MapCarrier map[string]string

// Set implements Writer.
func (c MapCarrier) Set(key, val string) { c[key] = val }

// ForeachKey implements Reader.
func (c MapCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}
