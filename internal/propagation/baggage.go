// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package propagation

import (
	"strings"

	"github.com/tracecore/tracecore/internal/tracerror"
)

const (
	headerBaggage = "baggage"

	// DefaultBaggageMaxItems mirrors dd-trace-cpp's baggage.h
	// default_max_capacity.
	DefaultBaggageMaxItems = 64
	// DefaultBaggageMaxBytes mirrors dd-trace-cpp's baggage.h
	// default_options.max_bytes.
	DefaultBaggageMaxBytes = 2048
)

// Baggage is an ordered key->value store: insertion order is preserved so
// truncation at injection time (by item count or byte budget) behaves
// predictably.
type Baggage struct {
	keys   []string
	values map[string]string
}

// NewBaggage returns an empty Baggage.
func NewBaggage() *Baggage {
	return &Baggage{values: make(map[string]string)}
}

// Set inserts or overwrites key with value, preserving key's original
// position if it already existed.
func (b *Baggage) Set(key, value string) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// Get returns the value for key and whether it was present.
func (b *Baggage) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Remove deletes key, if present.
func (b *Baggage) Remove(key string) {
	if _, ok := b.values[key]; !ok {
		return
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of items currently stored.
func (b *Baggage) Len() int { return len(b.keys) }

// Items returns the stored key/value pairs in insertion order.
func (b *Baggage) Items() []TraceTag {
	out := make([]TraceTag, 0, len(b.keys))
	for _, k := range b.keys {
		out = append(out, TraceTag{Key: k, Value: b.values[k]})
	}
	return out
}

// BaggageExtract parses the "baggage" header: comma separated entries, "="
// separated key/value, both trimmed; a ";"-prefixed
// suffix on an entry (a property list) is parsed off and discarded. Any
// malformed entry fails the whole extraction.
func BaggageExtract(r Reader) (*Baggage, error) {
	var header string
	var present bool
	err := r.ForeachKey(func(k, v string) error {
		if strings.ToLower(k) == headerBaggage {
			header, present = v, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return ParseBaggageHeader(header)
}

// ParseBaggageHeader parses the raw baggage header value into a Baggage
// store.
func ParseBaggageHeader(header string) (*Baggage, error) {
	b := NewBaggage()
	for _, entry := range strings.Split(header, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		// Drop any ";"-suffixed properties; they are parsed off and ignored.
		if i := strings.Index(entry, ";"); i != -1 {
			entry = entry[:i]
		}
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			return nil, tracerror.New(tracerror.KindExtraction, "malformed baggage entry: "+entry)
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key == "" {
			return nil, tracerror.New(tracerror.KindExtraction, "malformed baggage entry: "+entry)
		}
		b.Set(key, value)
	}
	return b, nil
}

// BaggageInject serializes b as "key=value,key=value" entries, stopping
// before any entry that would exceed maxItems or push the total size past
// maxBytes. No partial entry is ever emitted.
func BaggageInject(w Writer, b *Baggage, maxItems, maxBytes int) {
	if b == nil || b.Len() == 0 {
		return
	}
	var parts []string
	size := 0
	count := 0
	for _, item := range b.Items() {
		if maxItems > 0 && count >= maxItems {
			break
		}
		entry := item.Key + "=" + item.Value
		added := len(entry)
		if len(parts) > 0 {
			added++ // the joining comma
		}
		if maxBytes > 0 && size+added > maxBytes {
			break
		}
		parts = append(parts, entry)
		size += added
		count++
	}
	if len(parts) == 0 {
		return
	}
	w.Set(headerBaggage, strings.Join(parts, ","))
}
