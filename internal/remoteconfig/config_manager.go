// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import (
	"encoding/json"
	"sync"

	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/sampler"
)

// validProvenances enumerates the remote-config provenance values this
// module accepts on a sampling rule.
var validProvenances = map[string]bool{
	"customer": true,
	"dynamic":  true,
	"auto":     true,
}

type tracingConfigPayload struct {
	SamplingRate  *float64              `json:"tracing_sampling_rate"`
	SamplingRules []tracingSamplingRule `json:"tracing_sampling_rules"`
	Tags          map[string]string     `json:"tracing_tags"`
	Enabled       *bool                 `json:"tracing_enabled"`
}

type tracingSamplingRule struct {
	Service    string            `json:"service"`
	Name       string            `json:"name"`
	Resource   string            `json:"resource"`
	Tags       map[string]string `json:"tags"`
	SampleRate float64           `json:"sample_rate"`
	Provenance string            `json:"provenance"`
}

// ConfigManager is the APM_TRACING remote-config Listener: a valid update
// swaps the live trace sampler behind a mutex-guarded pointer (with
// tracing_enabled=false the new sampler is disabled), and on_revert or a
// bad update restores the finalize-time sampler and report-traces flag.
// An update never changes the report-traces flag, tracing_tags are parsed
// but not applied, and no span-sampler defaults are held. The teacher has no direct equivalent (v1's
// remote config only drives its own ASM/profiling listeners), so the
// dispatch shape is carried over from the Listener contract above and the
// actual sampler-swap technique follows dd-trace-cpp's shared_span_sampler
// pattern: a reader acquires a shared handle atomically rather than
// locking across its use.
type ConfigManager struct {
	mu sync.Mutex

	finalizedSampler *sampler.TraceSampler
	currentSampler   *sampler.TraceSampler

	finalizedReportTraces bool
	currentReportTraces   bool

	onSamplerSwap func(*sampler.TraceSampler)
}

// NewConfigManager builds a ConfigManager whose finalize-time values are
// the sampler and reportTraces flag produced by the tracer's own
// configuration, before any remote update is ever applied. onSamplerSwap,
// if non-nil, is called with the new sampler every time it changes
// (update or revert) so the tracer facade can republish its shared
// pointer.
func NewConfigManager(finalized *sampler.TraceSampler, reportTraces bool, onSamplerSwap func(*sampler.TraceSampler)) *ConfigManager {
	return &ConfigManager{
		finalizedSampler:      finalized,
		currentSampler:        finalized,
		finalizedReportTraces: reportTraces,
		currentReportTraces:   reportTraces,
		onSamplerSwap:         onSamplerSwap,
	}
}

// CurrentSampler returns the live sampler pointer.
func (c *ConfigManager) CurrentSampler() *sampler.TraceSampler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSampler
}

// ReportTraces returns the live report-traces flag.
func (c *ConfigManager) ReportTraces() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentReportTraces
}

// Products implements Listener.
func (c *ConfigManager) Products() []string { return []string{ProductAPMTracing} }

// Capabilities implements Listener.
func (c *ConfigManager) Capabilities() uint64 {
	return CapabilityAPMTracingSampleRate | CapabilityAPMTracingSampleRules | CapabilityAPMTracingTags | CapabilityAPMTracingEnabled
}

// OnUpdate implements Listener: parses and validates the APM_TRACING
// payload and, if valid, swaps in a freshly built TraceSampler.
func (c *ConfigManager) OnUpdate(cfg Config) (errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if errMsg != "" {
			c.revertLocked()
		}
	}()

	var payload tracingConfigPayload
	if err := json.Unmarshal(cfg.Raw, &payload); err != nil {
		return "invalid tracing config JSON: " + err.Error()
	}

	defaultRate := c.currentSampler.DefaultRate()
	if payload.SamplingRate != nil {
		if *payload.SamplingRate < 0 || *payload.SamplingRate > 1 {
			return "tracing_sampling_rate out of range [0,1]"
		}
		defaultRate = sampler.Rate(*payload.SamplingRate)
	}

	var rules []*sampler.TraceRule
	for _, rr := range payload.SamplingRules {
		if rr.Provenance == "" || !validProvenances[rr.Provenance] {
			return "tracing_sampling_rules: unknown provenance " + rr.Provenance
		}
		if rr.SampleRate < 0 || rr.SampleRate > 1 {
			return "tracing_sampling_rules: sample_rate out of range [0,1]"
		}
		m := matcher.NewRule(rr.Service, rr.Name, rr.Resource, rr.Tags)
		rules = append(rules, &sampler.TraceRule{Matcher: m, Rate: sampler.Rate(rr.SampleRate)})
	}

	next := sampler.NewTraceSampler(rules, defaultRate, 0)
	if payload.Enabled != nil && !*payload.Enabled {
		next.Disable()
	}

	c.currentSampler = next
	if c.onSamplerSwap != nil {
		c.onSamplerSwap(next)
	}
	return ""
}

// OnRevert implements Listener: restores the finalize-time sampler and
// report-traces flag.
func (c *ConfigManager) OnRevert(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertLocked()
}

func (c *ConfigManager) revertLocked() {
	c.currentSampler = c.finalizedSampler
	c.currentReportTraces = c.finalizedReportTraces
	if c.onSamplerSwap != nil {
		c.onSamplerSwap(c.finalizedSampler)
	}
}

// OnPostProcess implements Listener; ConfigManager has no batched
// post-response work.
func (c *ConfigManager) OnPostProcess() {}
