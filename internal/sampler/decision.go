// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package sampler

import "github.com/tracecore/tracecore/internal/samplernames"

// Priority is the sampling-priority value carried on the wire
// (x-datadog-sampling-priority / the dd tracestate "s:" value).
type Priority int

const (
	// PriorityUserReject means a user explicitly dropped the trace.
	PriorityUserReject Priority = -1
	// PriorityAutoReject means the tracer's sampler dropped the trace.
	PriorityAutoReject Priority = 0
	// PriorityAutoKeep means the tracer's sampler kept the trace.
	PriorityAutoKeep Priority = 1
	// PriorityUserKeep means a user explicitly kept the trace.
	PriorityUserKeep Priority = 2
)

// Decision captures a complete sampling outcome: whether the trace is kept,
// which mechanism decided, and (for root spans) the distributed-tracing
// origin.
type Decision struct {
	Priority Priority
	Mechanism samplernames.SamplerName
	Origin    string
	// Rate is the sampling rate applied, if any; reported as a span metric
	// (_dd.agent_psr, _dd.rule_psr) by the caller.
	Rate Rate
	// LimiterEffectiveRate and LimiterMaxPerSecond are non-nil only when a
	// rule match consulted the shared rate limiter (i.e. the rule didn't
	// set BypassLimiter); reported as the _dd.limit_psr span metric by the
	// caller.
	LimiterEffectiveRate *float64
	LimiterMaxPerSecond  *float64
}

// Kept reports whether the decision results in the trace being kept.
func (d Decision) Kept() bool {
	return d.Priority == PriorityAutoKeep || d.Priority == PriorityUserKeep
}
