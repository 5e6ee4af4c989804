// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package version exposes this module's release identifier, reported to the
// agent collector and the remote-config client.
package version

// Tag is the current release tag of this module. It is reported in the
// agent collector's Datadog-Meta-Tracer-Version header and the remote
// config client's ClientTracer.TracerVersion field.
const Tag = "1.0.0"
