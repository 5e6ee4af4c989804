// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package sampler

import (
	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/samplernames"
)

// SpanRule is a single span-sampling rule: a matcher, a sample rate, and an
// optional independent rate limit, mirroring dd-trace-cpp's
// span_sampler.h Rule (each rule owns its own limiter, unlike the trace
// sampler's single shared bucket).
type SpanRule struct {
	Matcher      *matcher.Rule
	Rate         Rate
	MaxPerSecond float64 // 0 means unlimited
	limiter      *TokenBucket
}

// NewSpanRule compiles a span-sampling rule. maxPerSecond of 0 means the
// rule has no independent rate limit.
func NewSpanRule(m *matcher.Rule, rate Rate, maxPerSecond float64) *SpanRule {
	r := &SpanRule{Matcher: m, Rate: rate.Clamp(), MaxPerSecond: maxPerSecond}
	if maxPerSecond > 0 {
		r.limiter = NewTokenBucket(maxPerSecond)
	}
	return r
}

// SpanSampler evaluates keep-anyway rules against individual spans of a
// trace the TraceSampler already decided to drop. It never runs on kept
// traces, per spec.
type SpanSampler struct {
	rules []*SpanRule
}

// NewSpanSampler builds a SpanSampler from rules, evaluated in order; the
// first match wins.
func NewSpanSampler(rules []*SpanRule) *SpanSampler {
	return &SpanSampler{rules: rules}
}

// SpanDecision is the outcome of evaluating a single span against the span
// sampler's rules.
type SpanDecision struct {
	Kept         bool
	Rate         Rate
	MaxPerSecond float64 // 0 means the rule had no limiter
	HasLimit     bool
}

// Decide evaluates span (identified by its own 63-bit span ID, not the
// trace ID - span sampling must be independent per span) against the first
// matching rule. If no rule matches, the span is not kept by this sampler.
func (s *SpanSampler) Decide(spanID uint64, span matcher.Span) (SpanDecision, bool) {
	rule := s.match(span)
	if rule == nil {
		return SpanDecision{}, false
	}
	threshold := rule.Rate
	if !sampledByRate(spanID, threshold) {
		return SpanDecision{Kept: false, Rate: rule.Rate}, true
	}
	if rule.limiter == nil {
		return SpanDecision{Kept: true, Rate: rule.Rate}, true
	}
	allowed := rule.limiter.Allow()
	return SpanDecision{
		Kept:         allowed,
		Rate:         rule.Rate,
		MaxPerSecond: rule.MaxPerSecond,
		HasLimit:     true,
	}, true
}

func (s *SpanSampler) match(span matcher.Span) *SpanRule {
	for _, r := range s.rules {
		if r.Matcher.Match(span) {
			return r
		}
	}
	return nil
}

// Mechanism is the sampling mechanism span-sampling decisions are always
// tagged with.
const Mechanism = samplernames.SingleSpan
