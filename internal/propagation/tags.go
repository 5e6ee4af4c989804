// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"strings"

	"github.com/tracecore/tracecore/internal/tracerror"
)

// TagsHeaderMaxSizeDefault is the default tags_header_max_size: above this
// many encoded bytes, the x-datadog-tags header is omitted entirely rather
// than truncated.
const TagsHeaderMaxSizeDefault = 512

// EncodePropagationTags serializes tags as comma-joined "k=v" pairs, the
// x-datadog-tags wire format. Returns "" if tags is empty.
func EncodePropagationTags(tags []TraceTag) string {
	if len(tags) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}

// DecodePropagationTags parses the x-datadog-tags wire format into an
// ordered tag list. Every key must start with "_dd.p."; keys/values may not
// contain '=' or ','.
func DecodePropagationTags(v string) ([]TraceTag, error) {
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	tags := make([]TraceTag, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, tracerror.New(tracerror.KindExtraction, "malformed x-datadog-tags entry: "+p)
		}
		if !strings.HasPrefix(kv[0], "_dd.p.") {
			return nil, tracerror.New(tracerror.KindExtraction, "x-datadog-tags key must start with _dd.p.: "+kv[0])
		}
		tags = append(tags, TraceTag{Key: kv[0], Value: kv[1]})
	}
	return tags, nil
}

// IsValidPropagatableTag reports whether key/value can be safely encoded
// into the x-datadog-tags wire format (no '=' or ',' in either position).
func IsValidPropagatableTag(key, value string) bool {
	if strings.ContainsAny(key, "=,") || strings.ContainsAny(value, "=,") {
		return false
	}
	return true
}

// SetTraceTag returns tags with key set to value, replacing any existing
// entry for key in place (preserving its position) or appending if absent.
func SetTraceTag(tags []TraceTag, key, value string) []TraceTag {
	for i, t := range tags {
		if t.Key == key {
			tags[i].Value = value
			return tags
		}
	}
	return append(tags, TraceTag{Key: key, Value: value})
}

// GetTraceTag returns the value for key, if present.
func GetTraceTag(tags []TraceTag, key string) (string, bool) {
	for _, t := range tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// RemoveTraceTag returns tags with key removed, if present.
func RemoveTraceTag(tags []TraceTag, key string) []TraceTag {
	for i, t := range tags {
		if t.Key == key {
			return append(tags[:i], tags[i+1:]...)
		}
	}
	return tags
}
