// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/internal/sampler"
)

func newFinalizedSampler(rate sampler.Rate) *sampler.TraceSampler {
	return sampler.NewTraceSampler(nil, rate, 0)
}

func TestConfigManagerOnUpdateSwapsSamplingRate(t *testing.T) {
	finalized := newFinalizedSampler(1.0)
	var swapped *sampler.TraceSampler
	cm := NewConfigManager(finalized, true, func(s *sampler.TraceSampler) { swapped = s })

	errMsg := cm.OnUpdate(Config{Raw: []byte(`{"tracing_sampling_rate":0.6}`)})
	require.Empty(t, errMsg)
	assert.Equal(t, sampler.Rate(0.6), cm.CurrentSampler().DefaultRate())
	assert.NotNil(t, swapped)
	assert.NotSame(t, finalized, cm.CurrentSampler())
}

func TestConfigManagerOnUpdateRejectsOutOfRangeRate(t *testing.T) {
	finalized := newFinalizedSampler(1.0)
	cm := NewConfigManager(finalized, true, nil)

	errMsg := cm.OnUpdate(Config{Raw: []byte(`{"tracing_sampling_rate":1.5}`)})
	assert.NotEmpty(t, errMsg)
	assert.Same(t, finalized, cm.CurrentSampler())
}

func TestConfigManagerOnUpdateRejectsUnknownProvenance(t *testing.T) {
	finalized := newFinalizedSampler(1.0)
	cm := NewConfigManager(finalized, true, nil)

	payload := `{"tracing_sampling_rules":[{"service":"a*","sample_rate":0.5,"provenance":"bogus"}]}`
	errMsg := cm.OnUpdate(Config{Raw: []byte(payload)})
	assert.Contains(t, errMsg, "provenance")
	assert.Same(t, finalized, cm.CurrentSampler())
}

func TestConfigManagerOnRevertRestoresFinalized(t *testing.T) {
	finalized := newFinalizedSampler(1.0)
	cm := NewConfigManager(finalized, true, nil)

	require.Empty(t, cm.OnUpdate(Config{Raw: []byte(`{"tracing_sampling_rate":0.1}`)}))
	assert.NotSame(t, finalized, cm.CurrentSampler())

	cm.OnRevert(Config{})
	assert.Same(t, finalized, cm.CurrentSampler())
	assert.True(t, cm.ReportTraces())
}

func TestConfigManagerProductsAndCapabilities(t *testing.T) {
	cm := NewConfigManager(newFinalizedSampler(1.0), true, nil)
	assert.Equal(t, []string{ProductAPMTracing}, cm.Products())
	assert.NotZero(t, cm.Capabilities())
}
