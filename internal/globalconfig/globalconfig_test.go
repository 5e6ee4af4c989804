// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package globalconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracecore/tracecore/internal/metrics"
)

func TestHeaderTag(t *testing.T) {
	SetHeaderTag("header1", "tag1")
	SetHeaderTag("header2", "tag2")

	assert.Equal(t, "tag1", cfg.headersAsTags.Get("header1"))
	assert.Equal(t, "tag2", cfg.headersAsTags.Get("header2"))
}

func TestSetStatsCarrier(t *testing.T) {
	sc := metrics.NewStatsCarrier(&metrics.NoOpClient{})
	SetStatsCarrier(sc)
	assert.NotNil(t, cfg.statsCarrier)
	cfg.statsCarrier = nil
}

func TestPushStat(t *testing.T) {
	tg := &recordingClient{}
	sc := metrics.NewStatsCarrier(tg)
	sc.Start()
	defer sc.Stop()
	cfg.statsCarrier = sc
	stat := metrics.NewGauge("name", float64(1), nil, 1)
	PushStat(stat)
	assert.Eventually(t, func() bool { return len(tg.calls()) == 1 }, testEventuallyTimeout, testEventuallyTick)
	assert.Contains(t, tg.calls(), "name")
	cfg.statsCarrier = nil
}

func TestStatsCarrier(t *testing.T) {
	t.Run("default none", func(t *testing.T) {
		assert.False(t, StatsCarrier())
	})
	t.Run("exists", func(t *testing.T) {
		sc := metrics.NewStatsCarrier(&metrics.NoOpClient{})
		cfg.statsCarrier = sc
		assert.True(t, StatsCarrier())
		cfg.statsCarrier = nil
	})
}

// TestClearStatsCarrier checks that ClearStatsCarrier removes the carrier
// from globalconfig without stopping it.
func TestClearStatsCarrier(t *testing.T) {
	sc := metrics.NewStatsCarrier(&metrics.NoOpClient{})
	cfg.statsCarrier = sc
	sc.Start()
	ClearStatsCarrier()
	assert.Nil(t, cfg.statsCarrier)
	assert.False(t, sc.Stopped())
	sc.Stop()
	cfg.statsCarrier = nil
}
