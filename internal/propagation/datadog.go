// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"strconv"
	"strings"

	"github.com/tracecore/tracecore/internal/idgen"
)

const (
	headerDatadogTraceID  = "x-datadog-trace-id"
	headerDatadogParentID = "x-datadog-parent-id"
	headerDatadogPriority = "x-datadog-sampling-priority"
	headerDatadogOrigin   = "x-datadog-origin"
	headerDatadogTags     = "x-datadog-tags"

	// traceIDHighTag is the propagation tag carrying the high 64 bits of a
	// 128-bit trace ID across the Datadog wire format.
	traceIDHighTag = "_dd.p.tid"
	// PropagationErrorTag is set on the local root span when injection or
	// extraction degrades but does not fail outright.
	PropagationErrorTag = "_dd.propagation_error"
)

// DatadogExtract extracts an ExtractedData from Datadog-style headers.
// Fail-soft for unknown/absent headers and for a malformed x-datadog-tags
// (reported via the returned propagation-error code instead); returns a
// non-nil error only when the trace/parent/priority header itself is
// malformed.
func DatadogExtract(r Reader) (ExtractedData, string, error) {
	var (
		traceIDRaw, parentIDRaw, priorityRaw, originRaw, tagsRaw string
		haveTraceID, haveParentID, havePriority, haveOrigin, haveTags bool
	)
	var d ExtractedData
	d.Style = Datadog

	err := r.ForeachKey(func(k, v string) error {
		key := strings.ToLower(k)
		switch key {
		case headerDatadogTraceID:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			traceIDRaw, haveTraceID = v, true
		case headerDatadogParentID:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			parentIDRaw, haveParentID = v, true
		case headerDatadogPriority:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			priorityRaw, havePriority = v, true
		case headerDatadogOrigin:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			originRaw, haveOrigin = v, true
		case headerDatadogTags:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			tagsRaw, haveTags = v, true
		}
		return nil
	})
	if err != nil {
		return d, "", err
	}

	if haveTraceID {
		id, perr := idgen.ParseTraceIDDecimal(traceIDRaw)
		if perr != nil {
			return d, "", newMalformed(headerDatadogTraceID, traceIDRaw)
		}
		d.TraceID = id
		d.HasTraceID = true
	}
	if haveParentID {
		id, perr := idgen.ParseSpanIDDecimal(parentIDRaw)
		if perr != nil {
			return d, "", newMalformed(headerDatadogParentID, parentIDRaw)
		}
		d.ParentID = id
		d.HasParentID = true
	}
	if havePriority {
		p, perr := strconv.Atoi(priorityRaw)
		if perr != nil {
			return d, "", newMalformed(headerDatadogPriority, priorityRaw)
		}
		d.SamplingPriority = p
		d.HasSamplingPriority = true
	}
	if haveOrigin {
		d.Origin = originRaw
		d.HasOrigin = true
	}

	var propErr string
	if haveTags {
		tags, decodeErr := DecodePropagationTags(tagsRaw)
		if decodeErr != nil {
			propErr = "decoding_error"
		} else {
			d.TraceTags = tags
			if hi, ok := GetTraceTag(tags, traceIDHighTag); ok && len(hi) == 16 {
				if upper, perr := idgen.ParseTraceIDHex(hi); perr == nil && d.HasTraceID {
					d.TraceID.Upper = upper.Lower
				}
			}
		}
	}
	return d, propErr, nil
}

// DatadogInject writes Datadog-style headers for the given identity. Returns
// true if the encoded propagation-tags header exceeded maxTagsHeaderSize and
// was therefore omitted, so the caller can tag the local root with
// "inject_max_size".
func DatadogInject(w Writer, traceID idgen.TraceID, spanID uint64, priority int, origin string, tags []TraceTag, maxTagsHeaderSize int) (omittedTagsHeader bool) {
	w.Set(headerDatadogTraceID, traceID.DecimalLower())
	w.Set(headerDatadogParentID, strconv.FormatUint(spanID, 10))
	w.Set(headerDatadogPriority, strconv.Itoa(priority))
	if origin != "" {
		w.Set(headerDatadogOrigin, origin)
	}
	encoded := EncodePropagationTags(tags)
	if encoded == "" {
		return false
	}
	if maxTagsHeaderSize > 0 && len(encoded) > maxTagsHeaderSize {
		return true
	}
	w.Set(headerDatadogTags, encoded)
	return false
}

func newMalformed(header, value string) error {
	return &malformedHeaderError{header: header, value: value}
}

type malformedHeaderError struct {
	header, value string
}

func (e *malformedHeaderError) Error() string {
	return "propagation: malformed " + e.header + " header value: " + e.value
}
