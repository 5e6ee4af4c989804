// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_pollIntervalFromEnv(t *testing.T) {
	defaultInterval := 5 * time.Second
	tests := []struct {
		name  string
		setup func(t *testing.T)
		want  time.Duration
	}{
		{name: "default", setup: func(t *testing.T) {}, want: defaultInterval},
		{name: "float", setup: func(t *testing.T) { t.Setenv("DD_REMOTE_CONFIG_POLL_INTERVAL_SECONDS", "0.2") }, want: 200 * time.Millisecond},
		{name: "integer", setup: func(t *testing.T) { t.Setenv("DD_REMOTE_CONFIG_POLL_INTERVAL_SECONDS", "2") }, want: 2 * time.Second},
		{name: "negative", setup: func(t *testing.T) { t.Setenv("DD_REMOTE_CONFIG_POLL_INTERVAL_SECONDS", "-1") }, want: defaultInterval},
		{name: "zero", setup: func(t *testing.T) { t.Setenv("DD_REMOTE_CONFIG_POLL_INTERVAL_SECONDS", "0") }, want: time.Nanosecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			assert.Equal(t, tt.want, pollIntervalFromEnv())
		})
	}
}
