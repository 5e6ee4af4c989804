// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/internal/httpmem"
)

func TestPublisherStartSendsAppStarted(t *testing.T) {
	var mu sync.Mutex
	var requestTypes []string
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/telemetry/proxy/api/v2/apmtelemetry", r.URL.Path)
		assert.Equal(t, "v2", r.Header.Get("DD-Telemetry-API-Version"))
		var env envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		mu.Lock()
		requestTypes = append(requestTypes, env.RequestType)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics := &Metrics{}
	p := NewPublisher(Config{
		AgentURL:   server.URL,
		RuntimeID:  "rt-1",
		Service:    "svc",
		HTTPClient: client,
		Metrics:    metrics,
	})

	p.Start(context.Background())
	defer p.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requestTypes, 1)
	assert.Equal(t, "app-started", requestTypes[0])
}

func TestPublisherCaptureAndHeartbeatCycle(t *testing.T) {
	var mu sync.Mutex
	var batches []envelope
	server, client := httpmem.ServerAndClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		mu.Lock()
		batches = append(batches, env)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics := &Metrics{}
	metrics.SpansCreated.Add(5)
	p := NewPublisher(Config{
		AgentURL:     server.URL,
		RuntimeID:    "rt-1",
		Service:      "svc",
		HTTPClient:   client,
		Metrics:      metrics,
		TickInterval: 5 * time.Millisecond,
	})

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, b := range batches {
			if b.RequestType == "message-batch" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
