// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package transport

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"
)

// encodeTraces writes chunks (one array entry per trace, each an array of
// span maps) as MessagePack, matching spec.md §6's "array of arrays of
// span maps" wire shape exactly, hand-written against msgp.Writer the way
// the teacher's generated *_gen.go files would via its own code generator,
// since these span maps aren't a fixed Go struct the msgp tool can reflect
// over (spec.md's key set is the contract, not any one Go type).
func encodeTraces(chunks [][]FinishedSpan) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteArrayHeader(uint32(len(chunks))); err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := w.WriteArrayHeader(uint32(len(chunk))); err != nil {
			return nil, err
		}
		for _, span := range chunk {
			if err := encodeSpan(w, span); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeSpan writes exactly the 12 keys spec.md §6 names, in a fixed
// order, so every encoded span map has the same shape regardless of which
// optional fields (meta, metrics) are empty.
func encodeSpan(w *msgp.Writer, s FinishedSpan) error {
	if err := w.WriteMapHeader(12); err != nil {
		return err
	}
	pairs := []struct {
		key string
		fn  func() error
	}{
		{"service", func() error { return w.WriteString(s.Service) }},
		{"name", func() error { return w.WriteString(s.Name) }},
		{"resource", func() error { return w.WriteString(s.Resource) }},
		{"trace_id", func() error { return w.WriteUint64(s.TraceID) }},
		{"span_id", func() error { return w.WriteUint64(s.SpanID) }},
		{"parent_id", func() error { return w.WriteUint64(s.ParentID) }},
		{"start", func() error { return w.WriteInt64(s.Start) }},
		{"duration", func() error { return w.WriteInt64(s.Duration) }},
		{"error", func() error { return w.WriteInt32(s.Error) }},
		{"meta", func() error { return encodeStringMap(w, s.Meta) }},
		{"metrics", func() error { return encodeFloatMap(w, s.Metrics) }},
		{"type", func() error { return w.WriteString(s.Type) }},
	}
	for _, p := range pairs {
		if err := w.WriteString(p.key); err != nil {
			return err
		}
		if err := p.fn(); err != nil {
			return err
		}
	}
	return nil
}

func encodeStringMap(w *msgp.Writer, m map[string]string) error {
	if err := w.WriteMapHeader(uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(v); err != nil {
			return err
		}
	}
	return nil
}

func encodeFloatMap(w *msgp.Writer, m map[string]float64) error {
	if err := w.WriteMapHeader(uint32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteFloat64(v); err != nil {
			return err
		}
	}
	return nil
}
