// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import "github.com/tracecore/tracecore/internal/idgen"

// TraceTag is a single decoded propagation tag (a "_dd.p.*"-prefixed
// key/value pair), kept as an ordered slice rather than a map so injection
// preserves the order tags were received.
type TraceTag struct {
	Key   string
	Value string
}

// ExtractedData is the scratch result of running one style's extractor
// over a carrier, before the multi-style merge reduces several of these to
// one.
type ExtractedData struct {
	TraceID    idgen.TraceID
	HasTraceID bool
	ParentID   uint64
	HasParentID bool

	Origin            string
	HasOrigin         bool
	SamplingPriority  int
	HasSamplingPriority bool

	TraceTags []TraceTag

	FullW3CTraceIDHex       string
	AdditionalW3CTracestate string
	// AdditionalW3CTracestate holds the other vendors' entries found
	// alongside the "dd=" entry in tracestate, preserved verbatim for
	// re-injection. AdditionalDatadogW3CTracestate is not filled by the W3C
	// extractor: unrecognized members of the "dd=" entry are dropped.
	AdditionalDatadogW3CTracestate string
	DatadogW3CParentID            string
	HasDatadogW3CParentID         bool

	Style Style

	// HeadersExamined records, with its value, every header this extractor
	// recognized in the carrier (absent headers are not listed), for
	// error-message construction
	// (extraction_util.cpp's AuditedReader).
	HeadersExamined [][2]string
}

// empty reports whether nothing of substance was extracted.
func (d ExtractedData) empty() bool {
	return !d.HasTraceID && !d.HasParentID
}
