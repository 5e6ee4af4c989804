// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testStatsdClient records every call name so tests can assert on delivery
// without a real statsd listener.
type testStatsdClient struct {
	mu    sync.Mutex
	names []string
}

func (t *testStatsdClient) Gauge(name string, _ float64, _ []string, _ float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
	return nil
}

func (t *testStatsdClient) Count(name string, _ int64, _ []string, _ float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
	return nil
}

func (t *testStatsdClient) Close() error { return nil }

func (t *testStatsdClient) callNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func TestCarrierPushAndFlush(t *testing.T) {
	tg := &testStatsdClient{}
	c := NewStatsCarrier(tg)
	c.Start()
	defer c.Stop()

	c.Push(NewGauge("name", 1, nil, 1))
	assert.Eventually(t, func() bool {
		return len(tg.callNames()) == 1
	}, time.Second, time.Millisecond)
	assert.Contains(t, tg.callNames(), "name")
}

func TestCarrierStop(t *testing.T) {
	tg := &testStatsdClient{}
	c := NewStatsCarrier(tg)
	c.Start()
	assert.False(t, c.Stopped())
	c.Stop()
	assert.True(t, c.Stopped())
	// stopping twice must not panic or block
	c.Stop()
}

func TestNoOpClient(t *testing.T) {
	var c StatsdClient = &NoOpClient{}
	assert.NoError(t, c.Gauge("x", 1, nil, 1))
	assert.NoError(t, c.Count("x", 1, nil, 1))
	assert.NoError(t, c.Close())
}
