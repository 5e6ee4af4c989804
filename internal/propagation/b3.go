// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"strings"

	"github.com/tracecore/tracecore/internal/idgen"
)

const (
	headerB3TraceID = "x-b3-traceid"
	headerB3SpanID  = "x-b3-spanid"
	headerB3Sampled = "x-b3-sampled"
)

// B3Extract extracts an ExtractedData from B3-multi headers: a 16 or 32
// hex trace ID, a 16 hex parent span ID, and a "0"/"1" sampled flag mapped
// to priority 0/1.
func B3Extract(r Reader) (ExtractedData, error) {
	var d ExtractedData
	d.Style = B3Multi

	var traceIDRaw, spanIDRaw, sampledRaw string
	var haveTraceID, haveSpanID, haveSampled bool

	err := r.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case headerB3TraceID:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			traceIDRaw, haveTraceID = v, true
		case headerB3SpanID:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			spanIDRaw, haveSpanID = v, true
		case headerB3Sampled:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			sampledRaw, haveSampled = v, true
		}
		return nil
	})
	if err != nil {
		return d, err
	}

	if haveTraceID {
		if len(traceIDRaw) != 16 && len(traceIDRaw) != 32 {
			return d, newMalformed(headerB3TraceID, traceIDRaw)
		}
		id, perr := idgen.ParseTraceIDHex(traceIDRaw)
		if perr != nil {
			return d, newMalformed(headerB3TraceID, traceIDRaw)
		}
		d.TraceID = id
		d.HasTraceID = true
	}
	if haveSpanID {
		if len(spanIDRaw) != 16 {
			return d, newMalformed(headerB3SpanID, spanIDRaw)
		}
		id, perr := idgen.ParseSpanIDHex(spanIDRaw)
		if perr != nil {
			return d, newMalformed(headerB3SpanID, spanIDRaw)
		}
		d.ParentID = id
		d.HasParentID = true
	}
	if haveSampled {
		switch sampledRaw {
		case "1":
			d.SamplingPriority = 1
			d.HasSamplingPriority = true
		case "0":
			d.SamplingPriority = 0
			d.HasSamplingPriority = true
		default:
			return d, newMalformed(headerB3Sampled, sampledRaw)
		}
	}
	return d, nil
}

// B3Inject writes B3-multi headers. traceID is rendered as 32 hex chars
// when Upper is nonzero, else 16.
func B3Inject(w Writer, traceID idgen.TraceID, spanID uint64, priority int) {
	w.Set(headerB3TraceID, traceID.HexLower())
	w.Set(headerB3SpanID, idgen.HexSpanID(spanID))
	if priority > 0 {
		w.Set(headerB3Sampled, "1")
	} else {
		w.Set(headerB3Sampled, "0")
	}
}
