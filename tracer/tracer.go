// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package tracer is the facade a host process embeds: it owns trace segment
// lifecycle, context propagation, sampling, and the background workers that
// hand finished spans and remote-config polls off to the agent. Grounded on
// other_examples' v1 tracer.go.go (the top-level Tracer type and its
// Start/Stop/StartSpan/Extract shape) and original_source/src/datadog's
// tracer_config.cpp/tracer_signature.h for the component wiring order.
package tracer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracecore/tracecore/internal/globalconfig"
	"github.com/tracecore/tracecore/internal/idgen"
	"github.com/tracecore/tracecore/internal/propagation"
	"github.com/tracecore/tracecore/internal/remoteconfig"
	"github.com/tracecore/tracecore/internal/sampler"
	"github.com/tracecore/tracecore/internal/samplernames"
	"github.com/tracecore/tracecore/internal/telemetry"
	"github.com/tracecore/tracecore/internal/transport"
	"github.com/tracecore/tracecore/internal/version"
)

// Tracer is the entry point for starting and extracting trace segments. The
// zero value is not usable; build one with Start.
type Tracer struct {
	cfg *config

	chain       *propagation.Chain
	spanSampler *sampler.SpanSampler
	collector   transport.Collector
	metrics     *telemetry.Metrics

	configManager *remoteconfig.ConfigManager
	rcManager     *remoteconfig.Manager

	telemetryPublisher *telemetry.Publisher

	samplerHandle atomic.Pointer[sampler.TraceSampler]

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Start builds and returns a running Tracer. Returned errors are
// tracerror.KindConfig failures discovered while finalizing opts; no
// background work is started and no resources need releasing in that case.
func Start(opts ...StartOption) (*Tracer, error) {
	cfg, err := finalizeConfig(opts...)
	if err != nil {
		return nil, err
	}

	t := &Tracer{
		cfg:     cfg,
		metrics: &telemetry.Metrics{},
		stopCh:  make(chan struct{}),
	}

	t.chain = &propagation.Chain{
		ExtractStyles:     cfg.extractStyles,
		InjectStyles:      cfg.injectStyles,
		BaggageEnabled:    cfg.baggageEnabled,
		BaggageMaxItems:   cfg.baggageMaxItems,
		BaggageMaxBytes:   cfg.baggageMaxBytes,
		TagsHeaderMaxSize: propagation.TagsHeaderMaxSizeDefault,
	}

	defaultRate := sampler.Rate(1)
	if cfg.hasSampleRate {
		defaultRate = sampler.Rate(cfg.sampleRate)
	}
	ts := sampler.NewTraceSampler(cfg.samplingRules, defaultRate, cfg.rateLimit)
	if !cfg.enabled {
		ts.Disable()
	}
	t.samplerHandle.Store(ts)

	if len(cfg.spanSampling) > 0 {
		t.spanSampler = sampler.NewSpanSampler(cfg.spanSampling)
	}

	if cfg.enabled {
		t.collector = transport.NewAgentCollector(transport.AgentCollectorConfig{
			AgentURL:      cfg.agentURL,
			FlushInterval: cfg.flushInterval,
			HTTPClient:    cfg.httpClient,
			Lang:          "go",
			LangVersion:   runtime.Version(),
			TracerVersion: version.Tag,
			Metrics:       t.metrics,
		})
	} else {
		t.collector = transport.NoopCollector{}
	}

	t.configManager = remoteconfig.NewConfigManager(ts, cfg.enabled, func(next *sampler.TraceSampler) {
		t.samplerHandle.Store(next)
	})
	rcClientConfig := remoteconfig.DefaultClientConfig()
	rcClientConfig.AgentURL = cfg.agentURL
	rcClientConfig.ServiceName = cfg.serviceName
	rcClientConfig.Env = cfg.env
	rcClientConfig.AppVersion = cfg.version
	rcClientConfig.RuntimeID = globalconfig.RuntimeID()
	rcClientConfig.HTTPClient = cfg.httpClient
	if cfg.rcPollInterval > 0 {
		rcClientConfig.PollInterval = cfg.rcPollInterval
	}
	t.rcManager = remoteconfig.NewManager(rcClientConfig, []remoteconfig.Listener{t.configManager})

	if cfg.telemetryEnabled {
		t.telemetryPublisher = telemetry.NewPublisher(telemetry.Config{
			AgentURL:     cfg.agentURL,
			RuntimeID:    globalconfig.RuntimeID(),
			Service:      cfg.serviceName,
			Env:          cfg.env,
			AppVersion:   version.Tag,
			HTTPClient:   cfg.httpClient,
			Metrics:      t.metrics,
			TickInterval: cfg.telemetryMetricsInterval,
		})
		t.telemetryPublisher.Start(context.Background())
	}

	t.wg.Add(1)
	go t.pollRemoteConfig()

	return t, nil
}

// currentSampler returns the live trace sampler, acquired as a shared handle
// rather than under a lock the caller must hold across its use.
func (t *Tracer) currentSampler() *sampler.TraceSampler {
	return t.samplerHandle.Load()
}

func (t *Tracer) pollRemoteConfig() {
	defer t.wg.Done()
	interval := t.cfg.rcPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_ = t.rcManager.Poll(ctx)
			cancel()
		case <-t.stopCh:
			return
		}
	}
}

// Stop terminates background work and flushes any buffered spans.
func (t *Tracer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
		if t.telemetryPublisher != nil {
			t.telemetryPublisher.Stop()
		}
		t.collector.Stop()
	})
}

// SpanOption configures a span at creation time.
type SpanOption func(*SpanData)

// WithSpanTag sets a string tag on a span as it is created.
func WithSpanTag(key, value string) SpanOption {
	return func(d *SpanData) { d.setTag(key, value) }
}

// WithSpanServiceType sets the new span's service type.
func WithSpanServiceType(t string) SpanOption {
	return func(d *SpanData) { d.ServiceType = t }
}

// CreateSpan starts a new root span and the trace segment that owns it.
func (t *Tracer) CreateSpan(name, resource string, opts ...SpanOption) *Span {
	traceID := idgen.NewTraceID()
	if t.cfg.traceID128 {
		traceID = idgen.NewTraceID128()
	}
	spanID := idgen.NewSpanID()

	seg := newTraceSegment(t, traceID, "")
	data := newSpanData(traceID, spanID, 0, t.cfg.serviceName, name, resource)
	for _, opt := range opts {
		opt(data)
	}
	t.metrics.SpansCreated.Add(1)
	t.metrics.TraceSegmentsCreatedNew.Add(1)
	return seg.registerSpan(data)
}

// Extract reconstructs a span from a carrier's propagated trace context, per
// the configured extraction styles. It returns tracerror.Extraction (via
// errors.Is) when the carrier does not describe an existing trace.
func (t *Tracer) Extract(r propagation.Reader) (*Span, error) {
	result, err := t.chain.Extract(r)
	if err != nil {
		return nil, err
	}
	if result.Data.TraceID.IsZero() {
		return nil, propagation.ErrNoSpanToExtract
	}

	seg := newTraceSegment(t, result.Data.TraceID, result.Data.Origin)
	seg.propagationTags = result.Data.TraceTags
	seg.additionalTracestate = result.Data.AdditionalW3CTracestate
	seg.baggage = result.Baggage
	if result.Data.HasSamplingPriority {
		seg.decision = &SamplingDecision{
			Priority:  result.Data.SamplingPriority,
			Mechanism: samplernames.Unknown,
			Origin:    DecisionExtracted,
		}
	}

	data := newSpanData(result.Data.TraceID, idgen.NewSpanID(), result.Data.ParentID, t.cfg.serviceName, "", "")
	if result.PropagationErrorCode != "" {
		data.setTag(propagation.PropagationErrorTag, result.PropagationErrorCode)
	}
	if result.Inconsistent {
		data.setTag("_dd.w3c.inconsistent", "1")
	}
	t.metrics.SpansCreated.Add(1)
	t.metrics.TraceSegmentsCreatedContinued.Add(1)
	return seg.registerSpan(data), nil
}

// ExtractOrCreate behaves like Extract, falling back to CreateSpan when the
// carrier carries no existing trace.
func (t *Tracer) ExtractOrCreate(r propagation.Reader, name, resource string) *Span {
	span, err := t.Extract(r)
	if err == nil {
		return span
	}
	return t.CreateSpan(name, resource)
}
