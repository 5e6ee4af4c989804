// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import "strconv"

// source identifies where a remote config path's first segment came from.
// Grounded on the teacher's path.go (DataDog-dd-trace-go/internal/remoteconfig,
// reconstructed from path_test.go since only the test file was retrieved).
type source interface {
	String() string
}

// DatadogSource is the "datadog/<org_id>" path source.
type DatadogSource struct {
	OrgID string
}

func (s DatadogSource) String() string { return "datadog/" + s.OrgID }

// EmployeeSource is the "employee" path source, used for configuration
// pushed directly by Datadog employees rather than through an org.
type EmployeeSource struct{}

func (s EmployeeSource) String() string { return "employee" }

// Path is a parsed remote config file path:
//
//	^(datadog/\d+|employee)/([^/]+)/[^/]+/[^/]+$
//
// split into Source/Product/ConfigID/Name.
type Path struct {
	Source   source
	Product  string
	ConfigID string
	Name     string
}

// String reconstructs the original path.
func (p Path) String() string {
	return p.Source.String() + "/" + p.Product + "/" + p.ConfigID + "/" + p.Name
}

// ParsePath parses filename into a Path by splitting on "/" rather than
// with a regexp. Returns ok=false for anything that doesn't match the
// grammar above.
func ParsePath(filename string) (Path, bool) {
	parts := splitPath(filename)

	var src source
	switch {
	case len(parts) >= 1 && parts[0] == "employee":
		src = EmployeeSource{}
		parts = parts[1:]
	case len(parts) >= 2 && parts[0] == "datadog":
		if !isDigits(parts[1]) {
			return Path{}, false
		}
		src = DatadogSource{OrgID: parts[1]}
		parts = parts[2:]
	default:
		return Path{}, false
	}

	if len(parts) != 3 {
		return Path{}, false
	}
	product, configID, name := parts[0], parts[1], parts[2]
	if product == "" || configID == "" || name == "" {
		return Path{}, false
	}
	return Path{Source: src, Product: product, ConfigID: configID, Name: name}, true
}

func splitPath(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return false
	}
	// ParseUint rejects non-digit forms such as "1337.42"; leading zeros
	// (e.g. "02") are accepted.
	return true
}
