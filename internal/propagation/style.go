// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import "strings"

// Style identifies one of the supported propagation carrier formats,
// mirroring dd-trace-cpp's propagation_style.h enumeration.
type Style int

const (
	// Datadog is the native x-datadog-* header format.
	Datadog Style = iota
	// B3Multi is the multi-header B3 format (x-b3-traceid, x-b3-spanid, x-b3-sampled).
	B3Multi
	// W3C is the W3C Trace Context format (traceparent/tracestate).
	W3C
	// Baggage is the W3C Baggage format, carried independently of trace identity.
	Baggage
)

// String renders the style the way it appears in DD_TRACE_PROPAGATION_STYLE.
func (s Style) String() string {
	switch s {
	case Datadog:
		return "datadog"
	case B3Multi:
		return "b3"
	case W3C:
		return "tracecontext"
	case Baggage:
		return "baggage"
	default:
		return "unknown"
	}
}

// ParseStyles parses a comma-separated DD_TRACE_PROPAGATION_STYLE-shaped
// list into an ordered, deduplicated style list. "none" clears the list
// entirely, matching propagation_styles.cpp's NONE sentinel. Unrecognized
// tokens are skipped (fail-soft, matching the teacher's getPropagators).
func ParseStyles(csv string) []Style {
	var out []Style
	seen := make(map[Style]bool)
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if tok == "none" {
			return nil
		}
		var s Style
		switch tok {
		case "datadog":
			s = Datadog
		case "b3", "b3multi", "b3 single header", "b3single":
			s = B3Multi
		case "tracecontext", "w3c":
			s = W3C
		case "baggage":
			s = Baggage
		default:
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DefaultStyles is used when no DD_TRACE_PROPAGATION_STYLE* variable is set.
func DefaultStyles() []Style {
	return []Style{Datadog, Baggage, W3C}
}
