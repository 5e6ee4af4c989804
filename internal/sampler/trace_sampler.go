// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package sampler

import (
	"sync"

	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/samplernames"
)

// TraceRule is a single local trace-sampling rule: a matcher, a sample
// rate, and whether a match should skip the sampler's shared rate limiter
// (spec.md §3's TraceSamplerRule: {matcher, rate, mechanism,
// bypass_limiter}), evaluated in declaration order. Unlike SpanRule, a
// TraceRule owns no limiter of its own — dd-trace-cpp's trace_sampler.h
// has exactly one Limiter per TraceSampler, consulted only for rule
// matches that don't bypass it.
type TraceRule struct {
	Matcher       *matcher.Rule
	Rate          Rate
	BypassLimiter bool
}

// TraceSampler decides whether to keep a locally-started trace, combining
// local rules, agent-learned per-service rates, and a global default rate,
// in that precedence order — mirroring dd-trace-cpp's trace_sampler. Its
// single rate limiter is consulted only when a rule matches (and that rule
// doesn't set BypassLimiter); the agent-rate and default branches carry no
// limiter at all, per trace_sampler.cpp's decide().
type TraceSampler struct {
	mu           sync.RWMutex
	rules        []*TraceRule
	agentRates   map[string]Rate // keyed by "service:<svc>,env:<env>"
	defaultRate  Rate
	limiter      *TokenBucket
	maxPerSecond float64
	disabled     bool
}

// NewTraceSampler builds a TraceSampler with the given local rules, default
// sample rate, and global rate limit (traces/second), consulted only when
// a rule matches and doesn't bypass it.
func NewTraceSampler(rules []*TraceRule, defaultRate Rate, limitPerSecond float64) *TraceSampler {
	if limitPerSecond <= 0 {
		limitPerSecond = 100 // dd-trace-cpp / agent default
	}
	return &TraceSampler{
		rules:        rules,
		agentRates:   make(map[string]Rate),
		defaultRate:  defaultRate.Clamp(),
		limiter:      NewTokenBucket(limitPerSecond),
		maxPerSecond: limitPerSecond,
	}
}

// DefaultRate returns the sampler's configured default rate, used by the
// remote-config listener to seed a partial update (e.g. new rules without a
// new tracing_sampling_rate) from the currently active rate.
func (s *TraceSampler) DefaultRate() Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultRate
}

// Disable turns this sampler into a drop-everything sampler: every trace
// is tagged PriorityAutoReject with mechanism Default and no rate is
// recorded. No trace is exempt: traces tagged _dd.p.ts are rejected too,
// and none is let through periodically.
func (s *TraceSampler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// UpdateAgentRates installs rates learned from the agent's rate_by_service
// response, replacing the previous set. Keys are "service:X,env:Y" as sent
// by the agent.
func (s *TraceSampler) UpdateAgentRates(rates map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentRates = make(map[string]Rate, len(rates))
	for k, v := range rates {
		s.agentRates[k] = Rate(v).Clamp()
	}
}

// Span is the minimal span view a trace sampler needs to evaluate rules and
// compute the Knuth-hash threshold.
type Span struct {
	TraceIDLower uint64
	Service      string
	Name         string
	Resource     string
	Env          string
	Meta         map[string]string
}

// Decide returns the sampling decision for a newly started (root) span.
func (s *TraceSampler) Decide(span Span) Decision {
	s.mu.RLock()
	disabled := s.disabled
	s.mu.RUnlock()
	if disabled {
		return Decision{Priority: PriorityAutoReject, Mechanism: samplernames.Default}
	}

	if rule := s.matchRule(span); rule != nil {
		return s.applyRuleRate(span, rule)
	}

	if rate, ok := s.agentRate(span); ok {
		return s.applyAutoRate(span, rate, samplernames.AgentRate)
	}

	s.mu.RLock()
	def := s.defaultRate
	s.mu.RUnlock()
	return s.applyAutoRate(span, def, samplernames.Default)
}

func (s *TraceSampler) matchRule(span Span) *TraceRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msp := matcher.Span{Service: span.Service, Name: span.Name, Resource: span.Resource, Meta: span.Meta}
	for _, r := range s.rules {
		if r.Matcher.Match(msp) {
			return r
		}
	}
	return nil
}

func (s *TraceSampler) agentRate(span Span) (Rate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := "service:" + span.Service + ",env:" + span.Env
	r, ok := s.agentRates[key]
	return r, ok
}

// applyRuleRate handles a local-rule match: a knuth-hash check against the
// rule's rate, then — unless the rule bypasses it — the sampler's single
// shared limiter, mirroring trace_sampler.cpp's decide(). Rule-derived
// decisions are always USER_KEEP/USER_DROP, since the rule is an explicit
// user-authored sampling choice.
func (s *TraceSampler) applyRuleRate(span Span, rule *TraceRule) Decision {
	if !sampledByRate(span.TraceIDLower, rule.Rate) {
		return Decision{Priority: PriorityUserReject, Mechanism: samplernames.RuleRate, Rate: rule.Rate}
	}
	if rule.BypassLimiter {
		return Decision{Priority: PriorityUserKeep, Mechanism: samplernames.RuleRate, Rate: rule.Rate}
	}
	allowed := s.limiter.Allow()
	p := PriorityUserReject
	if allowed {
		p = PriorityUserKeep
	}
	effectiveRate := float64(s.limiter.EffectiveRate())
	maxPerSecond := s.maxPerSecond
	return Decision{
		Priority:             p,
		Mechanism:            samplernames.RuleRate,
		Rate:                 rule.Rate,
		LimiterEffectiveRate: &effectiveRate,
		LimiterMaxPerSecond:  &maxPerSecond,
	}
}

// applyAutoRate handles the agent-rate and default-rate branches: a plain
// knuth-hash check against r, with no rate limiter consulted at all —
// trace_sampler.cpp never rate-limits these, only local-rule matches.
func (s *TraceSampler) applyAutoRate(span Span, r Rate, mech samplernames.SamplerName) Decision {
	p := PriorityAutoReject
	if sampledByRate(span.TraceIDLower, r) {
		p = PriorityAutoKeep
	}
	return Decision{Priority: p, Mechanism: mech, Rate: r}
}
