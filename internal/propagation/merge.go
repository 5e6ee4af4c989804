// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"github.com/tracecore/tracecore/internal/tracerror"
)

// Sentinel extraction failures, each a distinct tracerror.Extraction-kind
// error so callers can errors.Is against the broad category while logs
// carry the precise reason (errors are classified by kind, not by type).
var (
	// ErrNoSpanToExtract means neither a trace ID nor a parent ID was
	// extracted by any configured style - there is simply no context to
	// extract, not a malformed one.
	ErrNoSpanToExtract = tracerror.New(tracerror.KindExtraction, "no_span_to_extract")
	// ErrMissingTraceID means a parent ID was extracted without a trace ID
	// and no origin was present to explain it (e.g. a synthetic root).
	ErrMissingTraceID = tracerror.New(tracerror.KindExtraction, "missing_trace_id")
	// ErrMissingParentSpanID means a trace ID was extracted with neither a
	// parent ID nor an origin.
	ErrMissingParentSpanID = tracerror.New(tracerror.KindExtraction, "missing_parent_span_id")
	// ErrZeroTraceID means the winning style's trace ID decoded to all
	// zero bits, which is never valid.
	ErrZeroTraceID = tracerror.New(tracerror.KindExtraction, "zero_trace_id")
)

// InconsistentStylesTag is set on the local root when the winning style was
// W3C and another configured style extracted a different trace or parent
// ID: tag _dd.w3c.inconsistent but do not fail.
const InconsistentStylesTag = "_dd.w3c.inconsistent"

// MergeExtracted reduces the per-style extraction results (keyed by the
// style that produced them) into one context, following the configured
// extraction order for precedence. styleOrder lists every style that was
// attempted, in configuration order; results holds only the styles that
// were actually present in the carrier's headers.
//
// Returns the merged context, whether the local root should be tagged with
// InconsistentStylesTag, and an error for the unrecoverable cases.
func MergeExtracted(styleOrder []Style, results map[Style]ExtractedData) (ExtractedData, bool, error) {
	var winner Style
	haveWinner := false
	for _, s := range styleOrder {
		if d, ok := results[s]; ok && d.HasTraceID {
			winner = s
			haveWinner = true
			break
		}
	}
	if !haveWinner {
		for _, s := range styleOrder {
			if d, ok := results[s]; ok && d.HasParentID {
				if !d.HasOrigin {
					return d, false, ErrMissingTraceID
				}
				return d, false, nil
			}
		}
		return ExtractedData{}, false, nil
	}

	merged := results[winner]

	if merged.HasParentID && !merged.HasTraceID {
		if !merged.HasOrigin {
			return merged, false, ErrMissingTraceID
		}
	}
	if merged.HasTraceID && !merged.HasParentID && !merged.HasOrigin {
		return merged, false, ErrMissingParentSpanID
	}
	if merged.TraceID.IsZero() {
		return merged, false, ErrZeroTraceID
	}

	inconsistent := false
	if winner == W3C {
		for _, s := range styleOrder {
			if s == winner {
				continue
			}
			other, ok := results[s]
			if !ok {
				continue
			}
			if other.HasTraceID && other.TraceID != merged.TraceID {
				inconsistent = true
			}
			if other.HasParentID && other.ParentID != merged.ParentID {
				inconsistent = true
			}
		}
	}

	return merged, inconsistent, nil
}
