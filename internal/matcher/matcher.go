// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package matcher implements the glob-style rule matching shared by the
// trace sampler and span sampler: service/name/resource patterns and
// free-form tag patterns, each supporting '*' (any run of characters) and
// '?' (any single character), case-insensitively, as dd-trace-cpp's
// span_matcher does.
package matcher

import "strings"

// Glob compiles a single dd-trace glob pattern.
type Glob struct {
	raw    string
	lower  string
	isStar bool // fast path for the extremely common "match everything" rule
}

// Compile builds a Glob from pattern. An empty pattern matches only the
// empty string, matching dd-trace-cpp's span_matcher semantics.
func Compile(pattern string) *Glob {
	return &Glob{raw: pattern, lower: strings.ToLower(pattern), isStar: pattern == "*"}
}

// Match reports whether s matches the compiled pattern, case-insensitively.
func (g *Glob) Match(s string) bool {
	if g.isStar {
		return true
	}
	return globMatch(g.lower, strings.ToLower(s))
}

// globMatch is a standard backtracking glob matcher over '*' and '?'.
func globMatch(pattern, s string) bool {
	var pi, si int
	var starIdx = -1
	var matchIdx int
	for si < len(s) {
		if pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]) {
			pi++
			si++
		} else if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = si
			pi++
		} else if starIdx != -1 {
			pi = starIdx + 1
			matchIdx++
			si = matchIdx
		} else {
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// Rule is a service/name/resource/tags pattern set, the matching part shared
// by both trace sampling rules and span sampling rules. It carries no sample
// rate or rate limit; those live on the sampler rules that embed it.
type Rule struct {
	Service  *Glob
	Name     *Glob
	Resource *Glob
	Tags     map[string]*Glob
}

// NewRule compiles service/name/resource/tags patterns into a Rule. An empty
// pattern string means "match anything" for that dimension, per spec.
func NewRule(service, name, resource string, tags map[string]string) *Rule {
	r := &Rule{}
	if service != "" {
		r.Service = Compile(service)
	}
	if name != "" {
		r.Name = Compile(name)
	}
	if resource != "" {
		r.Resource = Compile(resource)
	}
	if len(tags) > 0 {
		r.Tags = make(map[string]*Glob, len(tags))
		for k, v := range tags {
			r.Tags[k] = Compile(v)
		}
	}
	return r
}

// Span is the minimal view of a span a Rule needs to evaluate a match.
type Span struct {
	Service  string
	Name     string
	Resource string
	Meta     map[string]string
}

// Match reports whether span satisfies every configured dimension of r. A
// nil dimension (no pattern configured) always matches.
func (r *Rule) Match(span Span) bool {
	if r.Service != nil && !r.Service.Match(span.Service) {
		return false
	}
	if r.Name != nil && !r.Name.Match(span.Name) {
		return false
	}
	if r.Resource != nil && !r.Resource.Match(span.Resource) {
		return false
	}
	for k, g := range r.Tags {
		v, ok := span.Meta[k]
		if !ok || !g.Match(v) {
			return false
		}
	}
	return true
}
