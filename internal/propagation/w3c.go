// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tracecore/tracecore/internal/idgen"
)

const (
	headerTraceparent = "traceparent"
	headerTracestate  = "tracestate"

	// tracestateDDMaxBytes bounds the "dd=" tracestate section, ported from
	// dd-trace-cpp's propagation.cpp 256-byte budget (see DESIGN.md Open
	// Questions).
	tracestateDDMaxBytes = 256
)

// W3CExtract extracts an ExtractedData by running the traceparent/tracestate
// state machine.
func W3CExtract(r Reader) (ExtractedData, error) {
	var d ExtractedData
	d.Style = W3C

	var traceparent, tracestate string
	var haveTraceparent, haveTracestate bool
	err := r.ForeachKey(func(k, v string) error {
		switch strings.ToLower(k) {
		case headerTraceparent:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			traceparent, haveTraceparent = v, true
		case headerTracestate:
			d.HeadersExamined = append(d.HeadersExamined, [2]string{k, v})
			tracestate, haveTracestate = v, true
		}
		return nil
	})
	if err != nil {
		return d, err
	}
	if !haveTraceparent {
		return d, nil
	}

	traceID, parentID, sampled, perr := parseTraceparent(traceparent)
	if perr != nil {
		return d, perr
	}
	d.TraceID = traceID
	d.HasTraceID = true
	d.ParentID = parentID
	d.HasParentID = true
	d.FullW3CTraceIDHex = traceID.HexLower32()
	if sampled {
		d.SamplingPriority = 1
	} else {
		d.SamplingPriority = 0
	}
	d.HasSamplingPriority = true

	if haveTracestate {
		parseTracestate(&d, tracestate)
	}
	return d, nil
}

// parseTraceparent implements the "version(2 hex) - trace_id(32 hex) -
// parent_id(16 hex) - flags(2 hex)" state machine, rejecting version "ff",
// all-zero IDs, and malformed lengths.
func parseTraceparent(v string) (idgen.TraceID, uint64, bool, error) {
	parts := strings.Split(v, "-")
	if len(parts) != 4 {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	version, traceIDHex, parentIDHex, flagsHex := parts[0], parts[1], parts[2], parts[3]
	if len(version) != 2 || len(traceIDHex) != 32 || len(parentIDHex) != 16 || len(flagsHex) != 2 {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	if version == "ff" {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	traceID, err := idgen.ParseTraceIDHex(traceIDHex)
	if err != nil || traceID.IsZero() {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	parentID, err := idgen.ParseSpanIDHex(parentIDHex)
	if err != nil || parentID == 0 {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	flags, err := strconv.ParseUint(flagsHex, 16, 8)
	if err != nil {
		return idgen.TraceID{}, 0, false, newMalformed(headerTraceparent, v)
	}
	sampled := flags&0x1 != 0
	return traceID, parentID, sampled, nil
}

// parseTracestate splits tracestate on commas, isolates the "dd=" entry,
// and decodes its ";"-separated k:v members, preserving any other vendors'
// entries verbatim for re-injection.
func parseTracestate(d *ExtractedData, tracestate string) {
	var otherEntries []string
	for _, entry := range strings.Split(tracestate, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "dd=") {
			parseDDTracestate(d, strings.TrimPrefix(entry, "dd="))
			continue
		}
		otherEntries = append(otherEntries, entry)
	}
	d.AdditionalW3CTracestate = strings.Join(otherEntries, ",")
}

func parseDDTracestate(d *ExtractedData, dd string) {
	for _, member := range strings.Split(dd, ";") {
		kv := strings.SplitN(member, ":", 2)
		if len(kv) != 2 {
			continue
		}
		k, v := kv[0], kv[1]
		switch {
		case k == "o":
			d.Origin = strings.ReplaceAll(v, "~", "=")
			d.HasOrigin = true
		case k == "s":
			// Keep the sign already parsed from traceparent's flags; only
			// the tracestate-carried priority magnitude is adopted when
			// consistent (keep the previously parsed traceparent sign if
			// inconsistent).
			if p, err := strconv.Atoi(v); err == nil {
				if (p > 0) == (d.SamplingPriority > 0) {
					d.SamplingPriority = p
				}
			}
		case k == "p":
			if len(v) == 16 {
				d.DatadogW3CParentID = v
				d.HasDatadogW3CParentID = true
			}
		case strings.HasPrefix(k, "t."):
			key := "_dd.p." + k[2:]
			val := strings.ReplaceAll(v, "~", "=")
			d.TraceTags = append(d.TraceTags, TraceTag{Key: key, Value: val})
		}
	}
}

// W3CInject writes traceparent and tracestate headers. priority is the
// decision priority prior to this call (the sign decides the traceparent
// sampled flag); tags are the accumulated propagation tags; origin may be
// "". additionalTracestate carries any non-"dd=" entries to re-emit.
func W3CInject(w Writer, traceID idgen.TraceID, spanID uint64, priority int, origin string, tags []TraceTag, additionalTracestate string) {
	flags := "00"
	if priority > 0 {
		flags = "01"
	}
	w.Set(headerTraceparent, fmt.Sprintf("00-%s-%s-%s", traceID.HexLower32(), idgen.HexSpanID(spanID), flags))
	w.Set(headerTracestate, composeTracestate(spanID, priority, origin, tags, additionalTracestate))
}

var tracestateKeyReplacer = strings.NewReplacer(",", "_", "=", "_")
var tracestateValueReplacer = strings.NewReplacer(",", "_", ";", "_", "=", "~")

// composeTracestate builds the "dd=" tracestate section, truncating at 256
// bytes by popping trailing ";"-segments, then appends any preserved
// non-dd entries, mirroring dd-trace-cpp's propagation.cpp composeTracestate
// (ported via the teacher's v1 textmap.go equivalent, see DESIGN.md).
func composeTracestate(spanID uint64, priority int, origin string, tags []TraceTag, additionalTracestate string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "dd=s:%d;p:%s", priority, idgen.HexSpanID(spanID))
	if origin != "" {
		fmt.Fprintf(&b, ";o:%s", tracestateValueReplacer.Replace(origin))
	}
	for _, t := range tags {
		if !strings.HasPrefix(t.Key, "_dd.p.") {
			continue
		}
		segment := fmt.Sprintf(";t.%s:%s",
			tracestateKeyReplacer.Replace(t.Key[len("_dd.p."):]),
			tracestateValueReplacer.Replace(t.Value))
		if b.Len()+len(segment) > tracestateDDMaxBytes {
			break
		}
		b.WriteString(segment)
	}
	if additionalTracestate == "" {
		return b.String()
	}
	return b.String() + "," + additionalTracestate
}
