// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package transport implements the agent-facing HTTP collector: MessagePack
// trace submission to /v0.4/traces, the /v0.7/config remote-config proxy,
// and the telemetry proxy, plus a no-op collector for APM-disabled runs.
// Grounded on original_source/src/datadog/datadog_agent.cpp/h and
// collector.h/collector_response.cpp for the collector contract and
// response decode shape, and the teacher's preserved transport_test.go/
// payload_test.go (real transport.go itself was not retrieved into this
// pack, only its tests) for header names and endpoint behavior.
package transport

// FinishedSpan is the wire-ready view of one span a Collector accepts: the
// exact 12 keys the msgpack span map requires, independent of however the
// tracer facade represents a live span internally.
type FinishedSpan struct {
	Service  string
	Name     string
	Resource string
	TraceID  uint64
	SpanID   uint64
	ParentID uint64
	Start    int64 // nanoseconds since the Unix epoch
	Duration int64 // nanoseconds
	Error    int32 // 0 or 1
	Meta     map[string]string
	Metrics  map[string]float64
	Type     string
}

// RateFeedbackSampler is the narrow surface a Collector needs to feed an
// agent's rate_by_service response back into whichever trace sampler
// produced the chunk, without this package importing internal/sampler
// directly.
type RateFeedbackSampler interface {
	UpdateAgentRates(rates map[string]float64)
}

// Collector accepts finished trace chunks for eventual delivery to the
// agent. Send must not block the calling (span-finishing) goroutine beyond
// a short buffer-guarding mutex, per spec.md §5.
type Collector interface {
	// Send enqueues one trace chunk (all spans of one local trace segment),
	// tagged with the sampler that decided it so a later agent response can
	// update that sampler's rates.
	Send(chunk []FinishedSpan, sampler RateFeedbackSampler)
	// Stop flushes any buffered chunks and stops the background worker,
	// blocking up to its own internal deadline.
	Stop()
}

// NoopCollector discards every chunk; used in APM-disabled mode where
// trace-producing code still runs but nothing is submitted, per spec.md's
// "APM-disabled mode" glossary entry.
type NoopCollector struct{}

// Send implements Collector.
func (NoopCollector) Send([]FinishedSpan, RateFeedbackSampler) {}

// Stop implements Collector.
func (NoopCollector) Stop() {}
