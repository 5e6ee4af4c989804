// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import "github.com/tracecore/tracecore/internal/idgen"

// Chain runs a configured ordered list of extractor styles over a carrier
// and reduces their results to one context, and injects using a configured
// (possibly different) ordered list of injector styles. Grounded on the
// teacher's chainedPropagator (other_examples textmap.go), generalized to
// the four styles and their merge semantics.
type Chain struct {
	ExtractStyles []Style
	InjectStyles  []Style
	BaggageEnabled bool
	BaggageMaxItems int
	BaggageMaxBytes int
	TagsHeaderMaxSize int
}

// ExtractResult bundles the merge output with the side information the
// caller (TraceSegment construction) needs to finish building a span.
type ExtractResult struct {
	Data ExtractedData
	// PropagationErrorCode is non-empty when a non-fatal decode error
	// occurred during extraction ("decoding_error").
	PropagationErrorCode string
	// Inconsistent is true when the W3C winner disagreed with another
	// present style's trace/parent ID (tagged _dd.w3c.inconsistent).
	Inconsistent bool
	// Baggage is the extracted baggage store, if the Baggage style is
	// configured and the header was present.
	Baggage *Baggage
}

// Extract runs every configured extraction style over r and merges the
// results.
func (c *Chain) Extract(r Reader) (ExtractResult, error) {
	results := make(map[Style]ExtractedData, len(c.ExtractStyles))
	var propErrCode string
	var baggage *Baggage

	for _, style := range c.ExtractStyles {
		switch style {
		case Datadog:
			d, code, err := DatadogExtract(r)
			if err != nil {
				return ExtractResult{}, err
			}
			if code != "" {
				propErrCode = code
			}
			if !d.empty() {
				results[style] = d
			}
		case B3Multi:
			d, err := B3Extract(r)
			if err != nil {
				return ExtractResult{}, err
			}
			if !d.empty() {
				results[style] = d
			}
		case W3C:
			d, err := W3CExtract(r)
			if err != nil {
				return ExtractResult{}, err
			}
			if !d.empty() {
				results[style] = d
			}
		case Baggage:
			if !c.BaggageEnabled {
				continue
			}
			b, err := BaggageExtract(r)
			if err != nil {
				return ExtractResult{}, err
			}
			baggage = b
		}
	}

	merged, inconsistent, err := MergeExtracted(c.ExtractStyles, results)
	if err != nil {
		return ExtractResult{}, err
	}
	return ExtractResult{
		Data:                 merged,
		PropagationErrorCode: propErrCode,
		Inconsistent:         inconsistent,
		Baggage:              baggage,
	}, nil
}

// InjectIdentity carries everything an injector needs from the
// TraceSegment/Span to write every enabled style's headers.
type InjectIdentity struct {
	TraceID              idgen.TraceID
	SpanID               uint64
	Priority             int
	Origin               string
	Tags                 []TraceTag
	AdditionalTracestate string
	Baggage              *Baggage
}

// Inject writes every configured injection style's headers into w, using
// identity. Returns true if the Datadog style's tags header was omitted
// for exceeding TagsHeaderMaxSize ("inject_max_size").
func (c *Chain) Inject(w Writer, identity InjectIdentity) (omittedTagsHeader bool) {
	for _, style := range c.InjectStyles {
		switch style {
		case Datadog:
			max := c.TagsHeaderMaxSize
			if max == 0 {
				max = TagsHeaderMaxSizeDefault
			}
			omittedTagsHeader = DatadogInject(w, identity.TraceID, identity.SpanID, identity.Priority, identity.Origin, identity.Tags, max)
		case B3Multi:
			B3Inject(w, identity.TraceID, identity.SpanID, identity.Priority)
		case W3C:
			W3CInject(w, identity.TraceID, identity.SpanID, identity.Priority, identity.Origin, identity.Tags, identity.AdditionalTracestate)
		case Baggage:
			if !c.BaggageEnabled {
				continue
			}
			maxItems := c.BaggageMaxItems
			if maxItems == 0 {
				maxItems = DefaultBaggageMaxItems
			}
			maxBytes := c.BaggageMaxBytes
			if maxBytes == 0 {
				maxBytes = DefaultBaggageMaxBytes
			}
			BaggageInject(w, identity.Baggage, maxItems, maxBytes)
		}
	}
	return omittedTagsHeader
}
