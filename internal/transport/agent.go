// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tracecore/tracecore/internal/log"
	"github.com/tracecore/tracecore/internal/telemetry"
)

const tracesPath = "/v0.4/traces"

// httpDoer is the narrow HTTP surface AgentCollector needs, so tests can
// substitute httpmem's in-memory server/client pair instead of binding a
// real port.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AgentCollectorConfig configures an AgentCollector.
type AgentCollectorConfig struct {
	AgentURL        string
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration
	HTTPClient      httpDoer
	Lang            string
	LangVersion     string
	TracerVersion   string
	// ComputedStats marks every request with Datadog-Client-Computed-Stats:
	// yes, used in APM-disabled mode where this tracer is not a source of
	// stats aggregation for the agent.
	ComputedStats bool
	// Metrics, if non-nil, receives the trace_api.* telemetry counters the
	// core publishes.
	Metrics *telemetry.Metrics
}

type bufferedChunk struct {
	spans   []FinishedSpan
	sampler RateFeedbackSampler
}

// AgentCollector buffers finished trace chunks and, on a fixed interval,
// MessagePack-encodes and POSTs them to the local agent's /v0.4/traces
// endpoint, feeding any rate_by_service response back to the chunk's trace
// sampler. Grounded on original_source/src/datadog/datadog_agent.cpp (the
// concrete Collector behind the collector.h interface) and the teacher's
// worker/ticker idiom (other_examples tracer.go.go's worker()).
type AgentCollector struct {
	cfg    AgentCollectorConfig
	client httpDoer

	mu     sync.Mutex
	buffer []bufferedChunk

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewAgentCollector builds an AgentCollector and starts its background
// flush loop.
func NewAgentCollector(cfg AgentCollectorConfig) *AgentCollector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	c := &AgentCollector{
		cfg:    cfg,
		client: client,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go c.worker()
	return c
}

// Send implements Collector: appends chunk to the buffer under a short
// mutex and returns without blocking.
func (c *AgentCollector) Send(chunk []FinishedSpan, sampler RateFeedbackSampler) {
	c.mu.Lock()
	c.buffer = append(c.buffer, bufferedChunk{spans: chunk, sampler: sampler})
	c.mu.Unlock()
}

func (c *AgentCollector) worker() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			c.flush()
			return
		}
	}
}

// Stop cancels the flush loop (idempotent, observed before returning),
// performs one final flush, and drains the HTTP client up to
// ShutdownTimeout.
func (c *AgentCollector) Stop() {
	c.once.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		if drainer, ok := c.client.(interface{ Drain(ctx context.Context) }); ok {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
			defer cancel()
			drainer.Drain(ctx)
		}
	})
}

func (c *AgentCollector) swapBuffer() []bufferedChunk {
	c.mu.Lock()
	buf := c.buffer
	c.buffer = nil
	c.mu.Unlock()
	return buf
}

func (c *AgentCollector) flush() {
	buf := c.swapBuffer()
	if len(buf) == 0 {
		return
	}
	chunks := make([][]FinishedSpan, len(buf))
	for i, b := range buf {
		chunks[i] = b.spans
	}
	body, err := encodeTraces(chunks)
	if err != nil {
		log.Error("transport: encode trace payload: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FlushInterval)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AgentURL+tracesPath, bytes.NewReader(body))
	if err != nil {
		log.Error("transport: build trace request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/msgpack")
	req.Header.Set("Datadog-Meta-Lang", c.cfg.Lang)
	req.Header.Set("Datadog-Meta-Lang-Version", c.cfg.LangVersion)
	req.Header.Set("Datadog-Meta-Tracer-Version", c.cfg.TracerVersion)
	req.Header.Set("X-Datadog-Trace-Count", strconv.Itoa(len(chunks)))
	if c.cfg.ComputedStats {
		req.Header.Set("Datadog-Client-Computed-Stats", "yes")
	}

	c.countRequest()
	resp, err := c.client.Do(req)
	if err != nil {
		c.countNetworkError()
		log.Error("transport: send trace payload: %v", err)
		return
	}
	defer resp.Body.Close()
	c.countResponse(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		log.Error("transport: agent returned status %d for trace payload", resp.StatusCode)
		return
	}

	var decoded agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Error("transport: decode agent trace response: %v", err)
		return
	}
	c.applyRates(buf, decoded.RateByService)
}

type agentResponse struct {
	RateByService map[string]float64 `json:"rate_by_service"`
}

// applyRates feeds the decoded agent rates back to every distinct sampler
// referenced by the flushed chunks. If any rate is out of range, the error
// is logged and no rate from that response is applied.
func (c *AgentCollector) applyRates(buf []bufferedChunk, rates map[string]float64) {
	if len(rates) == 0 {
		return
	}
	for k, v := range rates {
		if v < 0 || v > 1 {
			log.Error("transport: agent rate for %q out of range: %v", k, v)
			return
		}
	}
	seen := make(map[RateFeedbackSampler]bool, len(buf))
	for _, b := range buf {
		if b.sampler == nil || seen[b.sampler] {
			continue
		}
		seen[b.sampler] = true
		b.sampler.UpdateAgentRates(rates)
	}
}

func (c *AgentCollector) countRequest() {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TraceAPIRequests.Add(1)
	}
}

func (c *AgentCollector) countNetworkError() {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TraceAPIErrorsNetwork.Add(1)
	}
}

func (c *AgentCollector) countResponse(status int) {
	if c.cfg.Metrics == nil {
		return
	}
	switch {
	case status >= 200 && status < 300:
		c.cfg.Metrics.TraceAPIResponses2xx.Add(1)
	case status >= 400 && status < 500:
		c.cfg.Metrics.TraceAPIResponses4xx.Add(1)
		c.cfg.Metrics.TraceAPIErrorsStatusCode.Add(1)
	case status >= 500:
		c.cfg.Metrics.TraceAPIResponses5xx.Add(1)
		c.cfg.Metrics.TraceAPIErrorsStatusCode.Add(1)
	}
}
