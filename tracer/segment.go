// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"os"
	"strconv"
	"sync"

	"github.com/tracecore/tracecore/internal/globalconfig"
	"github.com/tracecore/tracecore/internal/idgen"
	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/propagation"
	"github.com/tracecore/tracecore/internal/sampler"
	"github.com/tracecore/tracecore/internal/samplernames"
	"github.com/tracecore/tracecore/internal/transport"
)

// TraceSegment owns the span-data set of one trace's local portion plus the
// trace-wide propagation/sampling state. Created by Tracer
// on a root span or a successful extraction; destroyed after the last span
// finishes and the set has been handed to the collector. Grounded on
// other_examples' v1 tracer.go.go worker/flush idiom for the hand-off to
// the collector, and original_source/src/datadog/trace_segment.cpp for the
// finalization algorithm.
type TraceSegment struct {
	tracer *Tracer

	mu sync.Mutex

	traceID uint128Carrier

	spans       []*SpanData
	numFinished int

	origin               string
	propagationTags      []propagation.TraceTag
	additionalTracestate string
	baggage              *propagation.Baggage

	decision *SamplingDecision
}

// uint128Carrier is just idgen.TraceID; named locally so this file reads
// without a second import alias.
type uint128Carrier = idgen.TraceID

func newTraceSegment(t *Tracer, traceID idgen.TraceID, origin string) *TraceSegment {
	return &TraceSegment{tracer: t, traceID: traceID, origin: origin}
}

// registerSpan appends a new SpanData slot and returns the handle for it.
// Precondition: numFinished < total or the segment is empty, which always
// holds here since a new slot is appended before any finish could observe
// totals matching.
func (s *TraceSegment) registerSpan(data *SpanData) *Span {
	s.mu.Lock()
	s.spans = append(s.spans, data)
	s.mu.Unlock()
	return &Span{data: data, segment: s}
}

// localRootLocked returns the first-registered span, the local root of this
// segment. Must be called with s.mu held.
func (s *TraceSegment) localRootLocked() *SpanData {
	return s.spans[0]
}

// spanFinished is called by Span.finishAt when one span's handle is
// dropped. When every registered span has finished, it runs the
// finalization algorithm and, unless tracing is disabled, hands the owned
// span set to the collector exactly once.
func (s *TraceSegment) spanFinished() {
	s.mu.Lock()
	s.numFinished++
	if s.numFinished != len(s.spans) {
		s.mu.Unlock()
		return
	}

	s.ensureDecisionLocked()
	if !s.decision.Kept() {
		s.runSpanSamplerLocked()
	}
	s.attachLocalRootTagsLocked()
	chunk := s.buildChunkLocked()
	feedbackSampler := s.tracer.currentSampler()
	s.mu.Unlock()

	s.tracer.metrics.TraceSegmentsClosed.Add(1)
	if !s.tracer.configManager.ReportTraces() {
		return
	}
	s.tracer.collector.Send(chunk, feedbackSampler)
}

// ensureDecisionLocked: if no decision exists yet, ask the live trace
// sampler for one. Must be called with s.mu held.
func (s *TraceSegment) ensureDecisionLocked() {
	if s.decision != nil {
		return
	}
	root := s.localRootLocked()
	ts := s.tracer.currentSampler()
	dec := ts.Decide(sampler.Span{
		TraceIDLower: s.traceID.Lower,
		Service:      root.Service,
		Name:         root.Name,
		Resource:     root.Resource,
		Env:          s.tracer.cfg.env,
		Meta:         root.Tags,
	})
	rate := float64(dec.Rate)
	sd := &SamplingDecision{
		Priority:             int(dec.Priority),
		Mechanism:            dec.Mechanism,
		Origin:               DecisionLocal,
		ConfiguredRate:       &rate,
		LimiterEffectiveRate: dec.LimiterEffectiveRate,
		LimiterMaxPerSecond:  dec.LimiterMaxPerSecond,
	}
	s.decision = sd
	s.setPropagationDMLocked()
}

// setPropagationDMLocked keeps the _dd.p.dm propagation tag consistent with
// the current decision's priority sign.
func (s *TraceSegment) setPropagationDMLocked() {
	if dm := s.decision.dmTag(); dm != "" {
		s.propagationTags = propagation.SetTraceTag(s.propagationTags, "_dd.p.dm", dm)
	} else {
		s.propagationTags = propagation.RemoveTraceTag(s.propagationTags, "_dd.p.dm")
	}
}

// runSpanSamplerLocked: on a dropped trace, evaluate every span against the
// keep-anyway span sampler and annotate matches. Must be called with s.mu
// held.
func (s *TraceSegment) runSpanSamplerLocked() {
	if s.tracer.spanSampler == nil {
		return
	}
	for _, data := range s.spans {
		decision, matched := s.tracer.spanSampler.Decide(data.SpanID, matcher.Span{
			Service:  data.Service,
			Name:     data.Name,
			Resource: data.Resource,
			Meta:     data.Tags,
		})
		if !matched || !decision.Kept {
			continue
		}
		data.setMetric("_dd.span_sampling.mechanism", float64(sampler.Mechanism))
		data.setMetric("_dd.span_sampling.rule_rate", float64(decision.Rate))
		if decision.HasLimit {
			data.setMetric("_dd.span_sampling.max_per_second", decision.MaxPerSecond)
		}
	}
}

// attachLocalRootTagsLocked stamps the decision and process-identity tags
// onto the local root span. Must be called with s.mu held.
func (s *TraceSegment) attachLocalRootTagsLocked() {
	root := s.localRootLocked()
	for _, t := range s.propagationTags {
		root.setTag(t.Key, t.Value)
	}
	root.setTag("_sampling_priority_v1", strconv.Itoa(s.decision.Priority))
	if s.tracer.cfg.hostname != "" {
		root.setTag("_dd.hostname", s.tracer.cfg.hostname)
	}
	switch s.decision.Mechanism {
	case samplernames.AgentRate:
		if s.decision.ConfiguredRate != nil {
			root.setMetric("_dd.agent_psr", *s.decision.ConfiguredRate)
		}
	case samplernames.RuleRate:
		if s.decision.ConfiguredRate != nil {
			root.setMetric("_dd.rule_psr", *s.decision.ConfiguredRate)
		}
	}
	if s.decision.LimiterEffectiveRate != nil {
		root.setMetric("_dd.limit_psr", *s.decision.LimiterEffectiveRate)
	}
	if s.origin != "" {
		root.setTag("_dd.origin", s.origin)
	}
	root.setTag("process_id", strconv.Itoa(os.Getpid()))
	root.setTag("language", "go")
	root.setTag("runtime-id", globalconfig.RuntimeID())
}

// buildChunkLocked converts the owned span set into the wire-ready view the
// collector accepts. Must be called with s.mu held.
func (s *TraceSegment) buildChunkLocked() []transport.FinishedSpan {
	chunk := make([]transport.FinishedSpan, len(s.spans))
	for i, d := range s.spans {
		errInt := int32(0)
		if d.Error {
			errInt = 1
		}
		chunk[i] = transport.FinishedSpan{
			Service:  d.Service,
			Name:     d.Name,
			Resource: d.Resource,
			TraceID:  s.traceID.Lower,
			SpanID:   d.SpanID,
			ParentID: d.ParentID,
			Start:    d.Start.Wall.UnixNano(),
			Duration: int64(d.Duration),
			Error:    errInt,
			Meta:     d.Tags,
			Metrics:  d.NumericTags,
			Type:     d.ServiceType,
		}
	}
	return chunk
}

// inject writes this segment's trace identity for spanID into w, using
// every configured injection style.
func (s *TraceSegment) inject(w propagation.Writer, spanID uint64) {
	s.mu.Lock()
	s.ensureDecisionLocked()
	identity := propagation.InjectIdentity{
		TraceID:              s.traceID,
		SpanID:               spanID,
		Priority:             s.decision.Priority,
		Origin:               s.origin,
		Tags:                 append([]propagation.TraceTag(nil), s.propagationTags...),
		AdditionalTracestate: s.additionalTracestate,
		Baggage:              s.baggage,
	}
	s.mu.Unlock()

	omitted := s.tracer.chain.Inject(w, identity)
	if omitted {
		s.mu.Lock()
		s.localRootLocked().setTag(propagation.PropagationErrorTag, "inject_max_size")
		s.mu.Unlock()
	}
}

// overrideSamplingPriority sets the decision to {p, MANUAL, LOCAL} and
// updates _dd.p.dm to match.
func (s *TraceSegment) overrideSamplingPriority(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = &SamplingDecision{Priority: p, Mechanism: samplernames.Manual, Origin: DecisionLocal}
	s.setPropagationDMLocked()
}
