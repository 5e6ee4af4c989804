// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import "github.com/tracecore/tracecore/internal/samplernames"

// DecisionOrigin records how a segment's SamplingDecision came to be, kept
// distinct from internal/sampler's own Decision.Origin (which names a
// distributed-tracing origin like "synthetics") — this is the provenance of
// the decision itself.
type DecisionOrigin int

const (
	// DecisionExtracted means the priority arrived on an extracted carrier.
	DecisionExtracted DecisionOrigin = iota
	// DecisionLocal means this process's trace sampler made the call.
	DecisionLocal
	// DecisionDelegated means sampling was deferred to a downstream service
	// via the (currently no-op) delegate_trace_sampling protocol.
	DecisionDelegated
)

// SamplingDecision is a trace segment's sampling outcome, recorded at most
// once except via explicit override.
type SamplingDecision struct {
	Priority  int
	Mechanism samplernames.SamplerName
	Origin    DecisionOrigin

	// ConfiguredRate, LimiterEffectiveRate, and LimiterMaxPerSecond are nil
	// when the corresponding mechanism didn't consult a rate or limiter
	// (e.g. an extracted decision has none of these).
	ConfiguredRate       *float64
	LimiterEffectiveRate *float64
	LimiterMaxPerSecond  *float64
}

// Kept reports whether the decision keeps the trace (positive priority).
func (d SamplingDecision) Kept() bool { return d.Priority > 0 }

// dmTag returns the _dd.p.dm propagation tag value for this decision, or ""
// if the priority is not positive (a non-kept decision carries no decision
// maker tag).
func (d SamplingDecision) dmTag() string {
	if d.Priority <= 0 {
		return ""
	}
	return d.Mechanism.DecisionMaker()
}
