// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2023 Datadog, Inc.

// Package httpmem provides an in-memory HTTP server and matching client,
// used by the agent collector and remote-config client tests so they never
// need to bind a real TCP port.
package httpmem

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
)

// ServerAndClient starts an httptest server running h and returns it along
// with an *http.Client whose Transport dials directly into it regardless of
// the requested host, so tests can use any URL (e.g. "http://foo/bar").
func ServerAndClient(h http.Handler) (*httptest.Server, *http.Client) {
	s := httptest.NewServer(h)
	c := &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, network, _ string) (net.Conn, error) {
				return net.Dial(network, s.Listener.Addr().String())
			},
		},
	}
	return s, c
}
