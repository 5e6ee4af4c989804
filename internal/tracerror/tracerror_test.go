// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracerror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(KindExtraction, "missing trace id")
	assert.True(t, errors.Is(err, Extraction))
	assert.False(t, errors.Is(err, Transport))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindTransport, "post failed", cause)
	assert.True(t, errors.Is(err, Transport))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}
