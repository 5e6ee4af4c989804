// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package metrics forwards internal health gauges and counters (sampler
// decisions, collector flush outcomes, remote-config poll results) to a
// statsd client without the packages that emit them needing to import each
// other or the statsd client directly.
package metrics

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// StatsdClient is the subset of *statsd.Client this module depends on, so
// tests can substitute a recording fake.
type StatsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Close() error
}

// Stat is a single named measurement queued for delivery.
type Stat struct {
	Name  string
	Value float64
	Tags  []string
	Rate  float64
	Kind  Kind
}

// Kind distinguishes a gauge from a monotonic counter.
type Kind int

const (
	// KindGauge reports a point-in-time value.
	KindGauge Kind = iota
	// KindCount reports an incremental value.
	KindCount
)

// NewGauge builds a gauge Stat.
func NewGauge(name string, value float64, tags []string, rate float64) Stat {
	return Stat{Name: name, Value: value, Tags: tags, Rate: rate, Kind: KindGauge}
}

// NewCount builds a count Stat.
func NewCount(name string, value float64, tags []string, rate float64) Stat {
	return Stat{Name: name, Value: value, Tags: tags, Rate: rate, Kind: KindCount}
}

// Carrier queues Stats on a buffered channel and forwards each one to a
// StatsdClient from its own goroutine as soon as it is received, so hot
// paths (span finish, sampling decision) never block on a network call.
type Carrier struct {
	client   StatsdClient
	stats    chan Stat
	stopped  chan struct{}
	wg       sync.WaitGroup
	interval time.Duration
}

// NewStatsCarrier returns a Carrier that will forward to client once Start is
// called.
func NewStatsCarrier(client StatsdClient) *Carrier {
	return &Carrier{
		client:   client,
		stats:    make(chan Stat, 1000),
		stopped:  make(chan struct{}),
		interval: 10 * time.Second,
	}
}

// Push enqueues a stat for delivery. Non-blocking: a full queue drops the
// stat rather than stalling the caller.
func (c *Carrier) Push(s Stat) {
	select {
	case c.stats <- s:
	default:
	}
}

// Start begins the delivery loop.
func (c *Carrier) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Carrier) run() {
	defer c.wg.Done()
	for {
		select {
		case s := <-c.stats:
			c.send(s)
		case <-c.stopped:
			return
		}
	}
}

func (c *Carrier) send(s Stat) {
	switch s.Kind {
	case KindCount:
		c.client.Count(s.Name, int64(s.Value), s.Tags, s.Rate)
	default:
		c.client.Gauge(s.Name, s.Value, s.Tags, s.Rate)
	}
}

// Stop halts delivery. The underlying StatsdClient is left open; callers own
// its lifecycle.
func (c *Carrier) Stop() {
	select {
	case <-c.stopped:
		return
	default:
		close(c.stopped)
	}
	c.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (c *Carrier) Stopped() bool {
	select {
	case <-c.stopped:
		return true
	default:
		return false
	}
}

// NoOpClient adapts statsd.NoOpClient to StatsdClient for callers that want
// telemetry wiring without a live agent.
type NoOpClient struct{ statsd.NoOpClient }
