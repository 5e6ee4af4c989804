// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	products     []string
	capabilities uint64
	updates      []Config
	reverts      []Config
	postProcess  int
	updateErr    string
}

func (f *fakeListener) Products() []string      { return f.products }
func (f *fakeListener) Capabilities() uint64     { return f.capabilities }
func (f *fakeListener) OnUpdate(cfg Config) string {
	f.updates = append(f.updates, cfg)
	return f.updateErr
}
func (f *fakeListener) OnRevert(cfg Config) { f.reverts = append(f.reverts, cfg) }
func (f *fakeListener) OnPostProcess()      { f.postProcess++ }

// buildTargetsJSON returns the raw (pre-base64) "/signed" envelope JSON;
// wireResponse.Targets is a []byte field, so assigning this directly lets
// encoding/json apply the real base64 coding on the wire exactly once.
func buildTargetsJSON(t *testing.T, version uint64, backendState string, hashesByPath map[string]string) []byte {
	t.Helper()
	env := signedTargetsEnvelopeForTest(version, backendState, hashesByPath)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

// signedTargetsEnvelopeForTest mirrors targetsEnvelope's shape without
// reaching into unexported construction helpers from the test package.
func signedTargetsEnvelopeForTest(version uint64, backendState string, hashesByPath map[string]string) targetsEnvelope {
	targets := make(map[string]signedTargetMeta, len(hashesByPath))
	for path, hash := range hashesByPath {
		meta := signedTargetMeta{}
		meta.Hashes.Sha256 = hash
		targets[path] = meta
	}
	env := targetsEnvelope{}
	env.Signed.Version = version
	env.Signed.Custom.OpaqueBackendState = backendState
	env.Signed.Targets = targets
	return env
}

func newTestManager(service, env string) *Manager {
	return NewManager(ClientConfig{
		ServiceName: service,
		Env:         env,
		RuntimeID:   "test-runtime",
	}, nil)
}

func TestManagerProcessResponseDispatchesUpdate(t *testing.T) {
	path := "datadog/2/APM_TRACING/cfg1/config"
	raw := []byte(`{"tracing_sampling_rate":0.6}`)
	targetsJSON := buildTargetsJSON(t, 7, "backend-state", map[string]string{path: "hash1"})

	listener := &fakeListener{products: []string{ProductAPMTracing}}
	m := newTestManager("my-service", "prod")
	m.listeners = []Listener{listener}

	resp := wireResponse{
		Targets:       targetsJSON,
		TargetFiles:   []wireTargetFile{{Path: path, Raw: raw}},
		ClientConfigs: []string{path},
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	err = m.ProcessResponse(body)
	require.NoError(t, err)

	require.Len(t, listener.updates, 1)
	assert.Equal(t, raw, listener.updates[0].Raw)
	assert.Equal(t, "APM_TRACING", listener.updates[0].Path.Product)
	assert.Equal(t, 1, listener.postProcess)
	assert.Equal(t, uint64(7), m.targetsVersion)
	assert.Equal(t, "backend-state", m.backendState)
	assert.Equal(t, applyAcknowledged, m.applied[path].state)
}

func TestManagerProcessResponseRevertsAllWhenClientConfigsAbsent(t *testing.T) {
	path := "datadog/2/APM_TRACING/cfg1/config"
	listener := &fakeListener{products: []string{ProductAPMTracing}}
	m := newTestManager("my-service", "prod")
	m.listeners = []Listener{listener}
	m.applied[path] = &appliedConfig{id: "cfg1", path: Path{Product: "APM_TRACING"}, product: "APM_TRACING", content: []byte("x")}

	err := m.ProcessResponse([]byte(`{}`))
	require.NoError(t, err)

	assert.Len(t, listener.reverts, 1)
	assert.Empty(t, m.applied)
	assert.Equal(t, 1, listener.postProcess)
}

func TestManagerProcessResponseServiceMismatchRecordsError(t *testing.T) {
	path := "datadog/2/APM_TRACING/cfg1/config"
	raw := []byte(`{"service_target":{"service":"other-service","env":"prod"},"tracing_sampling_rate":0.6}`)
	targetsJSON := buildTargetsJSON(t, 1, "", map[string]string{path: "hash1"})

	listener := &fakeListener{products: []string{ProductAPMTracing}}
	m := newTestManager("my-service", "prod")
	m.listeners = []Listener{listener}

	resp := wireResponse{
		Targets:       targetsJSON,
		TargetFiles:   []wireTargetFile{{Path: path, Raw: raw}},
		ClientConfigs: []string{path},
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	err = m.ProcessResponse(body)
	require.NoError(t, err)

	assert.Empty(t, listener.updates)
	assert.Equal(t, applyError, m.applied[path].state)
	assert.Equal(t, "Wrong service targeted", m.applied[path].errMsg)
}

func TestManagerProcessResponseUnchangedHashSkipsRedispatch(t *testing.T) {
	path := "datadog/2/APM_TRACING/cfg1/config"
	raw := []byte(`{"tracing_sampling_rate":0.6}`)
	targetsJSON := buildTargetsJSON(t, 1, "", map[string]string{path: "samehash"})

	listener := &fakeListener{products: []string{ProductAPMTracing}}
	m := newTestManager("my-service", "prod")
	m.listeners = []Listener{listener}
	m.applied[path] = &appliedConfig{id: "cfg1", path: Path{Product: "APM_TRACING"}, product: "APM_TRACING", hash: "samehash"}

	resp := wireResponse{
		Targets:       targetsJSON,
		TargetFiles:   []wireTargetFile{{Path: path, Raw: raw}},
		ClientConfigs: []string{path},
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	err = m.ProcessResponse(body)
	require.NoError(t, err)
	assert.Empty(t, listener.updates)
}

func TestManagerMakeRequestPayloadIncludesCapabilitiesAndProducts(t *testing.T) {
	listener := &fakeListener{products: []string{ProductAPMTracing}, capabilities: CapabilityAPMTracingSampleRate}
	m := newTestManager("my-service", "prod")
	m.listeners = []Listener{listener}

	payload, err := m.MakeRequestPayload()
	require.NoError(t, err)

	var req wireRequest
	require.NoError(t, json.Unmarshal(payload, &req))
	assert.Contains(t, req.Client.Products, ProductAPMTracing)
	assert.Equal(t, "my-service", req.Client.ClientTracer.Service)
	assert.Equal(t, uint64(1), req.Client.State.RootVersion)
}
