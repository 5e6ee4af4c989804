// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package sampler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket limits the number of traces sampled per second and tracks the
// effective rate actually achieved over the last 1-second window, so
// callers can report _dd.limit_psr (the fraction of matched traces the
// limiter actually let through) alongside the rule rate.
type TokenBucket struct {
	limiter *rate.Limiter

	mu           sync.Mutex
	windowStart  time.Time
	windowSeen   int
	windowKept   int
	effectiveRate Rate
}

// NewTokenBucket returns a limiter admitting up to maxPerSecond events per
// second, with a burst equal to maxPerSecond so a quiet period doesn't
// starve a sudden burst of otherwise-eligible traces.
func NewTokenBucket(maxPerSecond float64) *TokenBucket {
	burst := int(maxPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		limiter:       rate.NewLimiter(rate.Limit(maxPerSecond), burst),
		windowStart:   time.Now(),
		effectiveRate: 1,
	}
}

// Allow reports whether the current event may proceed, and updates the
// rolling effective-rate window used by EffectiveRate.
func (b *TokenBucket) Allow() bool {
	allowed := b.limiter.Allow()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotateWindowLocked()
	b.windowSeen++
	if allowed {
		b.windowKept++
	}
	return allowed
}

// rotateWindowLocked resets the 1-second accounting window once it elapses,
// snapshotting the effective rate observed during the window that just
// ended. Must be called with b.mu held.
func (b *TokenBucket) rotateWindowLocked() {
	if time.Since(b.windowStart) < time.Second {
		return
	}
	if b.windowSeen > 0 {
		b.effectiveRate = Rate(float64(b.windowKept) / float64(b.windowSeen))
	}
	b.windowStart = time.Now()
	b.windowSeen = 0
	b.windowKept = 0
}

// EffectiveRate returns the fraction of events admitted during the most
// recently completed 1-second window.
func (b *TokenBucket) EffectiveRate() Rate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveRate
}
