// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/internal/httpmem"
	"github.com/tracecore/tracecore/internal/telemetry"
)

type fakeSampler struct {
	mu    sync.Mutex
	rates map[string]float64
}

func (f *fakeSampler) UpdateAgentRates(rates map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates = rates
}

func (f *fakeSampler) lastRates() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rates
}

func testSpan() FinishedSpan {
	return FinishedSpan{
		Service: "svc", Name: "op", Resource: "res",
		TraceID: 1, SpanID: 2, ParentID: 0,
		Start: 1000, Duration: 500,
		Meta:    map[string]string{"foo": "bar"},
		Metrics: map[string]float64{},
	}
}

func TestAgentCollectorFlushSendsHeadersAndBody(t *testing.T) {
	var mu sync.Mutex
	var gotCount string
	var gotContentType string
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotCount = r.Header.Get("X-Datadog-Trace-Count")
		gotContentType = r.Header.Get("Content-Type")
		mu.Unlock()
		assert.Equal(t, "/v0.4/traces", r.URL.Path)
		assert.Equal(t, "go", r.Header.Get("Datadog-Meta-Lang"))
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(agentResponse{})
	}))
	defer server.Close()

	metrics := &telemetry.Metrics{}
	c := NewAgentCollector(AgentCollectorConfig{
		AgentURL:      server.URL,
		FlushInterval: 5 * time.Millisecond,
		HTTPClient:    client,
		Lang:          "go",
		LangVersion:   "1.22",
		TracerVersion: "1.0.0",
		Metrics:       metrics,
	})
	defer c.Stop()

	c.Send([]FinishedSpan{testSpan()}, nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotCount == "1"
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/msgpack", gotContentType)
	assert.EqualValues(t, 1, metrics.TraceAPIRequests.Load())
	assert.EqualValues(t, 1, metrics.TraceAPIResponses2xx.Load())
}

func TestAgentCollectorAppliesRateByService(t *testing.T) {
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(agentResponse{RateByService: map[string]float64{"service:a,env:prod": 0.5}})
	}))
	defer server.Close()

	c := NewAgentCollector(AgentCollectorConfig{
		AgentURL:      server.URL,
		FlushInterval: 5 * time.Millisecond,
		HTTPClient:    client,
	})
	defer c.Stop()

	fs := &fakeSampler{}
	c.Send([]FinishedSpan{testSpan()}, fs)

	require.Eventually(t, func() bool {
		return fs.lastRates() != nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0.5, fs.lastRates()["service:a,env:prod"])
}

func TestAgentCollectorIgnoresOutOfRangeRates(t *testing.T) {
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(agentResponse{RateByService: map[string]float64{"service:a,env:prod": 4.2}})
	}))
	defer server.Close()

	c := NewAgentCollector(AgentCollectorConfig{
		AgentURL:      server.URL,
		FlushInterval: 5 * time.Millisecond,
		HTTPClient:    client,
	})
	defer c.Stop()

	fs := &fakeSampler{}
	c.Send([]FinishedSpan{testSpan()}, fs)
	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, fs.lastRates())
}

func TestAgentCollectorNonOKResponseIsNotRetried(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	metrics := &telemetry.Metrics{}
	c := NewAgentCollector(AgentCollectorConfig{
		AgentURL:      server.URL,
		FlushInterval: 5 * time.Millisecond,
		HTTPClient:    client,
		Metrics:       metrics,
	})

	c.Send([]FinishedSpan{testSpan()}, nil)
	time.Sleep(40 * time.Millisecond)
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, metrics.TraceAPIResponses5xx.Load())
}

func TestAgentCollectorEmptyBufferSkipsRequest(t *testing.T) {
	var called bool
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewAgentCollector(AgentCollectorConfig{
		AgentURL:      server.URL,
		FlushInterval: 5 * time.Millisecond,
		HTTPClient:    client,
	})
	time.Sleep(20 * time.Millisecond)
	c.Stop()
	assert.False(t, called)
}
