// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

// Capability bits, an 8-byte big-endian bitmap. Only the
// capability this module's own listener declares is named; additional
// capabilities (ASM, profiling, ...) are out of scope and left for callers
// registering their own Listener to define with their own bit constants.
const (
	CapabilityAPMTracingSampleRate  uint64 = 1 << 12
	CapabilityAPMTracingSampleRules uint64 = 1 << 13
	CapabilityAPMTracingTags        uint64 = 1 << 14
	CapabilityAPMTracingEnabled     uint64 = 1 << 19
)

// ProductAPMTracing is the product name ConfigManager subscribes to.
const ProductAPMTracing = "APM_TRACING"

// Config is one decoded remote-config file handed to a Listener.
type Config struct {
	Path    Path
	Raw     []byte
	Version uint64
}

// Listener is the remote-config subscriber contract: get_products/
// get_capabilities declare interest, on_update/on_revert/on_post_process
// are the per-response callbacks.
type Listener interface {
	// Products returns the product names this listener wants dispatched.
	Products() []string
	// Capabilities returns the capability bits this listener declares.
	Capabilities() uint64
	// OnUpdate is called once per newly-applied or changed config for a
	// subscribed product. A non-empty returned string is an error message
	// (state becomes "error"); an empty string means accepted.
	OnUpdate(cfg Config) string
	// OnRevert is called for a config that is no longer present in the
	// latest client_configs list, or for every applied config when the
	// response carries no client_configs at all.
	OnRevert(cfg Config)
	// OnPostProcess is called once per response, after every Update/Revert
	// dispatch for that response has completed.
	OnPostProcess()
}
