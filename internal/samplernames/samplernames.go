// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

// Package samplernames enumerates which subsystem made a sampling decision,
// encoded as the "decision maker" value carried by the _dd.p.dm propagation
// tag.
package samplernames

// SamplerName identifies which component produced a SamplingDecision.
type SamplerName int32

const (
	// Unknown is used when the decision maker cannot be determined.
	Unknown SamplerName = -1
	// Default is the tracer's built-in default rate sampler.
	Default SamplerName = 0
	// AgentRate is a rate learned from the agent's rate_by_service payload.
	AgentRate SamplerName = 1
	// RemoteRate is a rate pushed via remote configuration (auto target).
	RemoteRate SamplerName = 2
	// RuleRate is a rate matched from a local trace sampling rule.
	RuleRate SamplerName = 3
	// Manual indicates the user explicitly set the sampling priority.
	Manual SamplerName = 4
	// AppSec indicates a decision forced by the AppSec product.
	AppSec SamplerName = 5
	// RemoteUserRate is a user-targeted remote configuration rate.
	RemoteUserRate SamplerName = 6
	// SingleSpan indicates a single-span sampling rule kept the span.
	SingleSpan SamplerName = 8
	// RemoteUserRule is a user-targeted remote configuration rule.
	RemoteUserRule SamplerName = 11
	// RemoteDynamicRule is a dynamic remote configuration rule.
	RemoteDynamicRule SamplerName = 12
)

// DecisionMaker returns the string encoded into the _dd.p.dm propagation
// tag for this sampler. Unrecognized values fall back to Unknown's encoding
// rather than producing garbage on the wire.
func (s SamplerName) DecisionMaker() string {
	switch s {
	case Default, AgentRate, RemoteRate, RuleRate, Manual, AppSec,
		RemoteUserRate, SingleSpan, RemoteUserRule, RemoteDynamicRule:
		return "-" + itoa(int32(s))
	default:
		return "--1"
	}
}

// itoa avoids pulling in strconv for a small-integer conversion used on
// a hot path (every sampled span finish).
func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
