// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/propagation"
	"github.com/tracecore/tracecore/internal/remoteconfig"
	"github.com/tracecore/tracecore/internal/sampler"
	"github.com/tracecore/tracecore/internal/telemetry"
	"github.com/tracecore/tracecore/internal/transport"
)

// fakeCollector records every chunk handed off by a TraceSegment, standing
// in for the real AgentCollector so these tests never touch the network.
type fakeCollector struct {
	mu     sync.Mutex
	chunks [][]transport.FinishedSpan
}

func (f *fakeCollector) Send(chunk []transport.FinishedSpan, _ transport.RateFeedbackSampler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
}

func (f *fakeCollector) Stop() {}

func (f *fakeCollector) all() [][]transport.FinishedSpan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]transport.FinishedSpan(nil), f.chunks...)
}

// newTestTracer builds a fully wired Tracer without starting any background
// goroutine (no flush loop, no remote-config poll), so tests drive span
// lifecycle and inspect the fake collector synchronously.
func newTestTracer(t *testing.T, collector *fakeCollector, opts ...StartOption) *Tracer {
	t.Helper()
	cfg, err := finalizeConfig(append([]StartOption{WithService("test-service")}, opts...)...)
	require.NoError(t, err)

	tr := &Tracer{
		cfg:     cfg,
		metrics: &telemetry.Metrics{},
		stopCh:  make(chan struct{}),
		chain: &propagation.Chain{
			ExtractStyles:     cfg.extractStyles,
			InjectStyles:      cfg.injectStyles,
			BaggageEnabled:    cfg.baggageEnabled,
			BaggageMaxItems:   cfg.baggageMaxItems,
			BaggageMaxBytes:   cfg.baggageMaxBytes,
			TagsHeaderMaxSize: propagation.TagsHeaderMaxSizeDefault,
		},
		collector: collector,
	}

	defaultRate := sampler.Rate(1)
	if cfg.hasSampleRate {
		defaultRate = sampler.Rate(cfg.sampleRate)
	}
	ts := sampler.NewTraceSampler(cfg.samplingRules, defaultRate, cfg.rateLimit)
	if !cfg.enabled {
		ts.Disable()
	}
	tr.samplerHandle.Store(ts)
	if len(cfg.spanSampling) > 0 {
		tr.spanSampler = sampler.NewSpanSampler(cfg.spanSampling)
	}
	tr.configManager = remoteconfig.NewConfigManager(ts, true, func(next *sampler.TraceSampler) {
		tr.samplerHandle.Store(next)
	})
	return tr
}

// S1: create a span, tag it, drop it. The collector receives one chunk of
// one span, root-parented, tagged, with a positive duration.
func TestCreateSpanTagAndFinishDeliversOneChunk(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc)

	span := tr.CreateSpan("web.request", "GET /", WithSpanTag("ignored_opt", "x"))
	span.SetTag("foo", "bar")
	span.Finish()

	chunks := fc.all()
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0], 1)
	got := chunks[0][0]
	assert.Equal(t, uint64(0), got.ParentID)
	assert.Equal(t, "bar", got.Meta["foo"])
	assert.Greater(t, got.Duration, int64(0))
}

// S2: extract Datadog headers and verify trace identity, origin, and
// _dd.p.tid all round-trip onto the resulting span.
func TestExtractDatadogHeaders(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc, WithPropagationStyles([]propagation.Style{propagation.Datadog}))

	carrier := propagation.MapCarrier{
		"x-datadog-trace-id":         "123",
		"x-datadog-parent-id":        "456",
		"x-datadog-sampling-priority": "2",
		"x-datadog-origin":           "synth",
		"x-datadog-tags":             "_dd.p.dm=-3,_dd.p.tid=abc",
	}

	span, err := tr.Extract(carrier)
	require.NoError(t, err)
	require.NotNil(t, span)

	assert.Equal(t, uint64(123), span.TraceID().Lower)
	assert.Equal(t, uint64(456), span.data.ParentID)

	span.segment.mu.Lock()
	origin := span.segment.origin
	span.segment.mu.Unlock()
	assert.Equal(t, "synth", origin)

	tidHigh := false
	for _, tag := range span.segment.propagationTags {
		if tag.Key == "_dd.p.tid" {
			tidHigh = true
			assert.Equal(t, "abc", tag.Value)
		}
	}
	assert.True(t, tidHigh, "_dd.p.tid should be carried as a propagation tag")

	span.Finish()
	chunks := fc.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, "abc", chunks[0][0].Meta["_dd.p.tid"])
}

// S3: inject a freshly created span with datadog+b3+tracecontext enabled and
// verify the Datadog and B3 headers carry the same trace ID, a traceparent
// header is written, and the Datadog parent ID is the span's own ID.
func TestInjectMultipleStylesAgreeOnIdentity(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc, WithPropagationStyles([]propagation.Style{
		propagation.Datadog, propagation.B3Multi, propagation.W3C,
	}))

	span := tr.CreateSpan("op", "res")
	carrier := propagation.MapCarrier{}
	span.Inject(carrier)

	ddTraceID := carrier["x-datadog-trace-id"]
	require.NotEmpty(t, ddTraceID)
	traceIDLow, err := strconv.ParseUint(ddTraceID, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, span.TraceID().Lower, traceIDLow)

	b3TraceID := carrier["x-b3-traceid"]
	require.NotEmpty(t, b3TraceID)
	b3Parsed, err := strconv.ParseUint(b3TraceID, 16, 64)
	require.NoError(t, err)
	assert.Equal(t, traceIDLow, b3Parsed)

	tp := carrier["traceparent"]
	require.Contains(t, tp, "00-")
	ddParentID := carrier["x-datadog-parent-id"]
	parentIDParsed, err := strconv.ParseUint(ddParentID, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, span.SpanID(), parentIDParsed)

	span.Finish()
}

// S4: a rule matching service "a*" with rate 0.0 drops every span for
// service "alpha".
func TestSamplingRuleDropsMatchingService(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc, WithService("alpha"), func(c *config) {
		c.samplingRules = []*sampler.TraceRule{
			{Matcher: matcher.NewRule("a*", "", "", nil), Rate: 0},
		}
	})

	span := tr.CreateSpan("op", "res")
	span.Finish()

	chunks := fc.all()
	require.Len(t, chunks, 1)
	priority, err := strconv.Atoi(chunks[0][0].Meta["_sampling_priority_v1"])
	require.NoError(t, err)
	assert.LessOrEqual(t, priority, 0)
}

// Span invariant: across a root + two children finishing in arbitrary
// order, exactly one span has ParentID 0, all share one trace ID, and the
// collector receives the whole set exactly once.
func TestChildSpansShareTraceAndFinishOnce(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc)

	root := tr.CreateSpan("root", "res")
	childA := root.CreateChild("a", "res")
	childB := root.CreateChild("b", "res")

	childB.Finish()
	childA.Finish()
	root.Finish()

	chunks := fc.all()
	require.Len(t, chunks, 1, "the segment must hand its spans to the collector exactly once")
	require.Len(t, chunks[0], 3)

	rootCount := 0
	traceIDs := map[uint64]bool{}
	for _, s := range chunks[0] {
		if s.ParentID == 0 {
			rootCount++
		}
		traceIDs[s.TraceID] = true
		assert.GreaterOrEqual(t, s.Duration, int64(0))
	}
	assert.Equal(t, 1, rootCount)
	assert.Len(t, traceIDs, 1)
}

func TestExtractOrCreateFallsBackWhenNoTraceHeaders(t *testing.T) {
	fc := &fakeCollector{}
	tr := newTestTracer(t, fc)

	span := tr.ExtractOrCreate(propagation.MapCarrier{}, "fallback", "res")
	require.NotNil(t, span)
	assert.Equal(t, uint64(0), span.data.ParentID)
	span.Finish()
}
