// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package globalconfig

import (
	"sync"
	"time"
)

const (
	testEventuallyTimeout = time.Second
	testEventuallyTick    = time.Millisecond
)

// recordingClient is a minimal metrics.StatsdClient that records call names,
// used to assert that PushStat actually reaches the carrier.
type recordingClient struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingClient) Gauge(name string, _ float64, _ []string, _ float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *recordingClient) Count(name string, _ int64, _ []string, _ float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *recordingClient) Close() error { return nil }

func (r *recordingClient) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
