// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package env centralizes access to DD_* environment variables so that every
// subsystem reads configuration the same way, with the same alias handling.
package env

import (
	"os"
	"strconv"
	"time"
)

// aliases maps an alternate spelling of a variable to its canonical name.
// DD-API-KEY is accepted because some platform integrations set the
// dashed form.
var aliases = map[string]string{
	"DD-API-KEY": "DD_API_KEY",
}

// supported is the set of environment variables this module reads. Anything
// outside this set is treated as unknown, even if present in the process
// environment, so a typo in a DD_* variable fails closed instead of being
// silently picked up by a different component than the caller expects.
var supported = map[string]bool{
	"DD_API_KEY":                             true,
	"DD_SERVICE":                              true,
	"DD_ENV":                                  true,
	"DD_VERSION":                              true,
	"DD_AGENT_HOST":                           true,
	"DD_TRACE_AGENT_PORT":                     true,
	"DD_TRACE_AGENT_URL":                      true,
	"DD_TRACE_SAMPLE_RATE":                    true,
	"DD_TRACE_RATE_LIMIT":                     true,
	"DD_TRACE_SAMPLING_RULES":                 true,
	"DD_SPAN_SAMPLING_RULES":                  true,
	"DD_TRACE_PROPAGATION_STYLE":              true,
	"DD_TRACE_PROPAGATION_STYLE_INJECT":       true,
	"DD_TRACE_PROPAGATION_STYLE_EXTRACT":      true,
	"DD_TRACE_PROPAGATION_EXTRACT_FIRST":      true,
	"DD_TRACE_BAGGAGE_MAX_ITEMS":              true,
	"DD_TRACE_BAGGAGE_MAX_BYTES":              true,
	"DD_REMOTE_CONFIG_POLL_INTERVAL_SECONDS":  true,
	"DD_TRACE_LOGGING_RATE":                   true,
	"DD_TRACE_STARTUP_LOGS":                   true,
	"DD_TRACE_DEBUG":                          true,
	"DD_TRACE_ENABLED":                        true,
	"DD_TAGS":                                 true,
	"DD_TRACE_128_BIT_TRACEID_GENERATION_ENABLED": true,
	"DD_INSTRUMENTATION_TELEMETRY_ENABLED":        true,
	"DD_TELEMETRY_METRICS_ENABLED":                true,
	"DD_TELEMETRY_METRICS_INTERVAL_SECONDS":       true,
	"DD_TELEMETRY_HEARTBEAT_INTERVAL":             true,
	"DD_INSTRUMENTATION_INSTALL_ID":               true,
	"DD_INSTRUMENTATION_INSTALL_TYPE":             true,
	"DD_INSTRUMENTATION_INSTALL_TIME":             true,
}

// LookupEnv returns the value of the supported variable key, and whether it
// was both recognized and set.
func LookupEnv(key string) (string, bool) {
	if !supported[key] {
		return "", false
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	for alias, canonical := range aliases {
		if canonical != key {
			continue
		}
		if v, ok := os.LookupEnv(alias); ok {
			return v, true
		}
	}
	return "", false
}

// Getenv returns the value of the supported variable key, or "" if unset or
// unknown.
func Getenv(key string) string {
	v, _ := LookupEnv(key)
	return v
}

// String returns the supported variable key, or def if unset or unknown.
func String(key, def string) string {
	if v, ok := LookupEnv(key); ok {
		return v
	}
	return def
}

// Bool parses key as a boolean (accepting the same forms as strconv.ParseBool
// plus the empty string, which is not a value), falling back to def when
// unset, unknown, or unparsable.
func Bool(key string, def bool) bool {
	v, ok := LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration parses key as a number of seconds, falling back to def when
// unset, unknown, or unparsable. DD_* interval variables are documented in
// whole or fractional seconds, never Go duration strings.
func Duration(key string, def time.Duration) time.Duration {
	v, ok := LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// Float64 parses key as a float, falling back to def when unset, unknown, or
// unparsable.
func Float64(key string, def float64) float64 {
	v, ok := LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
