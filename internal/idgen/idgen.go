// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package idgen generates trace and span identifiers and wall/monotonic
// timestamps for the tracer core.
package idgen

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"time"
)

// generator wraps a PRNG with lazy re-seeding across process forks. Go has
// no pthread_atfork equivalent (goroutines, not fork(), are its concurrency
// primitive), so instead of hooking a fork callback like dd-trace-cpp does,
// this checks os.Getpid() against the PID observed at last seed and
// reseeds whenever they differ. See DESIGN.md Open Questions.
type generator struct {
	mu  sync.Mutex
	pid int
	r   *rand.Rand
}

var global = newGenerator()

func newGenerator() *generator {
	g := &generator{}
	g.reseed()
	return g
}

func (g *generator) reseed() {
	g.pid = os.Getpid()
	g.r = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(g.pid)))
}

func (g *generator) uint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if os.Getpid() != g.pid {
		g.reseed()
	}
	return g.r.Uint64()
}

// NewSpanID returns a new random 63-bit span identifier. The top bit is kept
// clear so the value fits in a signed int64 for agents and storage systems
// that treat span IDs as signed.
func NewSpanID() uint64 {
	return global.uint64() & 0x7FFFFFFFFFFFFFFF
}

// HexSpanID renders a span/parent ID as 16 lowercase hex characters, the
// B3 and W3C wire format.
func HexSpanID(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// ParseSpanIDHex parses a 16-hex-character span ID (B3 x-b3-spanid, W3C
// traceparent parent-id).
func ParseSpanIDHex(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// ParseSpanIDDecimal parses a decimal span ID (Datadog x-datadog-parent-id).
func ParseSpanIDDecimal(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// TraceID is a 128-bit trace identifier, represented as high/low 64-bit
// halves. Lower is the legacy 64-bit trace ID; Upper is zero unless 128-bit
// trace IDs are enabled.
type TraceID struct {
	Upper uint64
	Lower uint64
}

// IsZero reports whether t is the zero value, used to detect "no trace ID
// was extracted" without a separate boolean.
func (t TraceID) IsZero() bool { return t.Upper == 0 && t.Lower == 0 }

// NewTraceID returns a new random TraceID with Upper left zero; callers that
// need 128-bit IDs set Upper separately (e.g. from an extracted
// _dd.p.tid tag or a fresh high-order timestamp-derived value).
func NewTraceID() TraceID {
	return TraceID{Lower: global.uint64()}
}

// NewTraceID128 returns a new random TraceID with both halves populated,
// the high bits carrying a timestamp-derived seed in their top 32 bits as
// dd-trace-cpp's 128-bit generation does, so the ID sorts roughly with
// creation time when read as a plain 128-bit integer.
func NewTraceID128() TraceID {
	upper := (uint64(time.Now().Unix()) << 32) & 0xFFFFFFFF00000000
	return TraceID{Upper: upper, Lower: global.uint64()}
}

// ParseTraceIDDecimal parses the 64-bit decimal form used by the Datadog
// propagation headers (x-datadog-trace-id). Upper is left zero; a
// separate _dd.p.tid tag, if present, supplies it.
func ParseTraceIDDecimal(s string) (TraceID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return TraceID{}, err
	}
	return TraceID{Lower: v}, nil
}

// ParseTraceIDHex parses a 1-32 character hex trace ID (B3/W3C style). 32
// hex characters produce a 128-bit ID (high 16 chars -> Upper, low 16 ->
// Lower); 1-16 characters produce a 64-bit ID in Lower only.
func ParseTraceIDHex(s string) (TraceID, error) {
	if len(s) == 0 || len(s) > 32 {
		return TraceID{}, fmt.Errorf("idgen: trace id hex must be 1-32 chars, got %d", len(s))
	}
	if len(s) <= 16 {
		v, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return TraceID{}, err
		}
		return TraceID{Lower: v}, nil
	}
	highLen := len(s) - 16
	high, err := strconv.ParseUint(s[:highLen], 16, 64)
	if err != nil {
		return TraceID{}, err
	}
	low, err := strconv.ParseUint(s[highLen:], 16, 64)
	if err != nil {
		return TraceID{}, err
	}
	return TraceID{Upper: high, Lower: low}, nil
}

// HexLower32 renders the full 128-bit ID as 32 lowercase hex characters,
// the W3C traceparent trace-id field.
func (t TraceID) HexLower32() string {
	return fmt.Sprintf("%016x%016x", t.Upper, t.Lower)
}

// HexLower renders the ID the way B3 does: 32 hex characters if Upper is
// nonzero, else 16.
func (t TraceID) HexLower() string {
	if t.Upper != 0 {
		return t.HexLower32()
	}
	return fmt.Sprintf("%016x", t.Lower)
}

// DecimalLower renders the low 64 bits in decimal, the Datadog propagation
// form (x-datadog-trace-id).
func (t TraceID) DecimalLower() string {
	return strconv.FormatUint(t.Lower, 10)
}

// HexUpper16 renders the high 64 bits as 16 lowercase hex characters, the
// _dd.p.tid propagation tag value. Returns "" if Upper is zero (the tag is
// omitted on the wire in that case).
func (t TraceID) HexUpper16() string {
	if t.Upper == 0 {
		return ""
	}
	return fmt.Sprintf("%016x", t.Upper)
}

// TimePoint captures both a wall-clock reading (for reporting) and a
// monotonic reading (for computing durations immune to clock adjustments),
// mirroring dd-trace-cpp's TimePoint.
type TimePoint struct {
	Wall      time.Time
	Monotonic time.Duration // since an arbitrary but fixed process epoch
}

var processEpoch = time.Now()

// Now returns the current TimePoint.
func Now() TimePoint {
	return TimePoint{Wall: time.Now(), Monotonic: time.Since(processEpoch)}
}

// Sub returns the duration elapsed between t and earlier, computed from the
// monotonic readings so it is unaffected by NTP adjustments to wall time.
func (t TimePoint) Sub(earlier TimePoint) time.Duration {
	return t.Monotonic - earlier.Monotonic
}
