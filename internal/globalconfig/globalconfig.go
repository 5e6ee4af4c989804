// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package globalconfig stores process-wide state that needs to be visible
// outside the tracer package itself: the current service name, the
// header-as-tags mapping, and an optional carrier used to forward internal
// health metrics to statsd.
package globalconfig

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tracecore/tracecore/internal/metrics"
)

type headerTags struct {
	mu sync.RWMutex
	m  map[string]string
}

func (h *headerTags) Get(header string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m[header]
}

func (h *headerTags) set(header, tag string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m == nil {
		h.m = make(map[string]string)
	}
	h.m[header] = tag
}

type globalConfig struct {
	mu            sync.RWMutex
	serviceName   string
	runtimeID     string
	headersAsTags headerTags
	statsCarrier  *metrics.Carrier
	analyticsRate float64
}

var cfg = &globalConfig{
	runtimeID:     uuid.NewString(),
	analyticsRate: 0,
}

// SetServiceName sets the global service name, used as a default for spans
// that don't set one explicitly and by the telemetry publisher.
func SetServiceName(name string) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	cfg.serviceName = name
}

// ServiceName returns the global service name.
func ServiceName() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.serviceName
}

// RuntimeID returns the unique ID generated for this process at startup.
func RuntimeID() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.runtimeID
}

// SetHeaderTag maps an HTTP header name to a span tag.
func SetHeaderTag(header, tag string) { cfg.headersAsTags.set(header, tag) }

// HeaderTag returns the span tag mapped to header, or "" if none.
func HeaderTag(header string) string { return cfg.headersAsTags.Get(header) }

// SetStatsCarrier installs the carrier used to forward internal stats.
func SetStatsCarrier(c *metrics.Carrier) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	cfg.statsCarrier = c
}

// ClearStatsCarrier removes the installed carrier without stopping it;
// callers that started it remain responsible for stopping it.
func ClearStatsCarrier() {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	cfg.statsCarrier = nil
}

// StatsCarrier reports whether a stats carrier is currently installed.
func StatsCarrier() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.statsCarrier != nil
}

// PushStat forwards s to the installed stats carrier, if any.
func PushStat(s metrics.Stat) {
	cfg.mu.RLock()
	c := cfg.statsCarrier
	cfg.mu.RUnlock()
	if c != nil {
		c.Push(s)
	}
}

// SetAnalyticsRate sets the default trace analytics sample rate.
func SetAnalyticsRate(rate float64) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	cfg.analyticsRate = rate
}

// AnalyticsRate returns the default trace analytics sample rate.
func AnalyticsRate() float64 {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.analyticsRate
}
