// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package sampler implements trace- and span-level sampling: rule and
// agent-rate based trace decisions, a token-bucket rate limiter with an
// effective-rate window, and post-hoc single-span sampling on dropped
// traces.
package sampler

// Rate is a sampling probability bounded to [0, 1].
type Rate float64

// Clamp returns r bounded into [0, 1].
func (r Rate) Clamp() Rate {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

// knuthFactor is the multiplicative hash constant used by the Datadog
// agent and every official tracer, ported from dd-trace-cpp's
// sampling_util.h so this tracer's threshold sampling agrees with traces
// sampled by other languages in the same distributed trace. Not an
// invented constant — see DESIGN.md Open Questions.
const knuthFactor uint64 = 1111111111111111111

// sampledByRate reports whether id falls below the threshold implied by
// rate, using the same multiplicative hash every Datadog tracer uses so
// that, given the same trace ID and rate, every language's tracer reaches
// the same decision.
func sampledByRate(id uint64, rate Rate) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	threshold := uint64(rate.Clamp() * float64(^uint64(0)))
	return id*knuthFactor < threshold
}
