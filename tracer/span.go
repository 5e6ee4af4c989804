// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"sync"
	"time"

	"github.com/tracecore/tracecore/internal/idgen"
	"github.com/tracecore/tracecore/internal/propagation"
)

// SpanData is the immutable-at-finalization record a Span produces on drop.
type SpanData struct {
	Service     string
	ServiceType string
	Name        string
	Resource    string

	TraceID  idgen.TraceID
	SpanID   uint64
	ParentID uint64 // 0 = root

	Start    idgen.TimePoint
	Duration time.Duration
	Error    bool

	Tags        map[string]string
	NumericTags map[string]float64
}

func newSpanData(traceID idgen.TraceID, spanID, parentID uint64, service, name, resource string) *SpanData {
	return &SpanData{
		Service:     service,
		Name:        name,
		Resource:    resource,
		TraceID:     traceID,
		SpanID:      spanID,
		ParentID:    parentID,
		Start:       idgen.Now(),
		Tags:        make(map[string]string),
		NumericTags: make(map[string]float64),
	}
}

func (d *SpanData) setTag(key, value string) {
	if d.Tags == nil {
		d.Tags = make(map[string]string)
	}
	d.Tags[key] = value
}

func (d *SpanData) setMetric(key string, value float64) {
	if d.NumericTags == nil {
		d.NumericTags = make(map[string]float64)
	}
	d.NumericTags[key] = value
}

// Span is the mutable front-end the user holds: exclusively owned, not
// cloneable, pointing at an owned SpanData inside a TraceSegment. Grounded
// on other_examples' v1 tracer-span.go.go (mutex-guarded setters, idempotent
// finish) generalized to this module's TraceSegment ownership model.
type Span struct {
	mu       sync.Mutex
	data     *SpanData
	segment  *TraceSegment
	finished bool
}

// SetTag sets a string tag on the span.
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.setTag(key, value)
}

// SetMetric sets a numeric tag on the span.
func (s *Span) SetMetric(key string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.setMetric(key, value)
}

// Tag returns the value of a string tag, and whether it was set.
func (s *Span) Tag(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Tags[key]
	return v, ok
}

// RemoveTag deletes a string tag, if present.
func (s *Span) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Tags, key)
}

// SetError marks the span as an error.
func (s *Span) SetError(isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.Error = isError
}

// SetService sets the span's service name.
func (s *Span) SetService(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.Service = service
}

// SetServiceType sets the span's service type (span.type on the wire).
func (s *Span) SetServiceType(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.ServiceType = t
}

// SetName sets the span's operation name.
func (s *Span) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.Name = name
}

// SetResource sets the span's resource name.
func (s *Span) SetResource(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.data.Resource = resource
}

// TraceID returns the 128-bit trace identifier of the segment this span
// belongs to.
func (s *Span) TraceID() idgen.TraceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.TraceID
}

// SpanID returns this span's own 63-bit identifier.
func (s *Span) SpanID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SpanID
}

// CreateChild allocates a new span parented by this one, registered on the
// same segment.
func (s *Span) CreateChild(name, resource string) *Span {
	s.mu.Lock()
	parentID := s.data.SpanID
	traceID := s.data.TraceID
	service := s.data.Service
	seg := s.segment
	s.mu.Unlock()

	data := newSpanData(traceID, idgen.NewSpanID(), parentID, service, name, resource)
	return seg.registerSpan(data)
}

// Inject writes the segment's trace identity into w using every configured
// injection style.
func (s *Span) Inject(w propagation.Writer) {
	s.mu.Lock()
	seg := s.segment
	spanID := s.data.SpanID
	s.mu.Unlock()
	seg.inject(w, spanID)
}

// Finish finalizes the span with the current time as its end time.
func (s *Span) Finish() {
	s.finishAt(idgen.Now())
}

// FinishWithTime finalizes the span with an explicit end time.
func (s *Span) FinishWithTime(end idgen.TimePoint) {
	s.finishAt(end)
}

func (s *Span) finishAt(end idgen.TimePoint) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.data.Duration = end.Sub(s.data.Start)
	if s.data.Duration < 0 {
		s.data.Duration = 0
	}
	seg := s.segment
	s.mu.Unlock()
	seg.spanFinished()
}
