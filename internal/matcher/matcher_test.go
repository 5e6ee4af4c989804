// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything", true},
		{"", "", true},
		{"", "x", false},
		{"web*", "web-service", true},
		{"web*", "api-service", false},
		{"*-service", "web-service", true},
		{"h?llo", "hello", true},
		{"h?llo", "hallo", true},
		{"h?llo", "hllo", false},
		{"a*b*c", "axxbxxc", true},
		{"a*b*c", "axxbxx", false},
		{"WEB*", "web-service", true}, // case-insensitive
	}
	for _, c := range cases {
		g := Compile(c.pattern)
		assert.Equal(t, c.want, g.Match(c.s), "pattern=%q s=%q", c.pattern, c.s)
	}
}

func TestRuleMatch(t *testing.T) {
	r := NewRule("web*", "http.request", "", map[string]string{"env": "prod*"})
	assert.True(t, r.Match(Span{Service: "web-app", Name: "http.request", Meta: map[string]string{"env": "production"}}))
	assert.False(t, r.Match(Span{Service: "worker", Name: "http.request", Meta: map[string]string{"env": "production"}}))
	assert.False(t, r.Match(Span{Service: "web-app", Name: "http.request", Meta: map[string]string{"env": "staging"}}))
	assert.False(t, r.Match(Span{Service: "web-app", Name: "http.request"})) // missing tag
}

func TestRuleEmptyDimensionsMatchAnything(t *testing.T) {
	r := NewRule("", "", "", nil)
	assert.True(t, r.Match(Span{Service: "anything", Name: "anything", Resource: "anything"}))
}
