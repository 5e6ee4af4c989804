// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package remoteconfig

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tracecore/tracecore/internal/tracerror"
	"github.com/tracecore/tracecore/internal/version"
)

// httpDoer is the narrow surface Manager needs from an HTTP client, so
// tests can substitute httpmem's in-memory server/client pair.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type applyState int

const (
	applyUnacknowledged applyState = iota
	applyAcknowledged
	applyError
)

func (s applyState) String() string {
	switch s {
	case applyAcknowledged:
		return "acknowledged"
	case applyError:
		return "error"
	default:
		return "unacknowledged"
	}
}

type appliedConfig struct {
	id      string
	path    Path
	hash    string
	version uint64
	content []byte
	product string
	state   applyState
	errMsg  string
}

// Manager is the remote-configuration state machine: it builds request
// payloads describing what this process has applied and processes the
// agent's Targets/Files response, dispatching to registered Listeners.
// Unlike the teacher's Repository-based client (which verifies TUF
// root/targets signatures via DataDog/go-tuf and datadog-agent's
// remoteconfig/state package), this decode model is intentionally unsigned
// - see DESIGN.md for why those two dependencies are not wired here.
type Manager struct {
	mu sync.Mutex

	clientID  string
	runtimeID string
	service   string
	env       string
	appVer    string

	agentURL   string
	httpClient httpDoer

	targetsVersion uint64
	backendState   string
	lastErrMessage string

	applied map[string]*appliedConfig

	listeners []Listener
}

// NewManager constructs a Manager from cfg, registering listeners as a
// statically-known dispatch list rather than supporting plugin loading.
func NewManager(cfg ClientConfig, listeners []Listener) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	runtimeID := cfg.RuntimeID
	if runtimeID == "" {
		runtimeID = uuid.NewString()
	}
	return &Manager{
		clientID:   uuid.NewString(),
		runtimeID:  runtimeID,
		service:    cfg.ServiceName,
		env:        cfg.Env,
		appVer:     cfg.AppVersion,
		agentURL:   cfg.AgentURL,
		httpClient: httpClient,
		applied:    make(map[string]*appliedConfig),
		listeners:  listeners,
	}
}

// wire payload shapes, grounded on the teacher's vendored v1 types.go
// (kubernetes-dns/vendor/.../remoteconfig/types.go), trimmed to the fields
// this unsigned decode model uses.

type wireConfigState struct {
	ID         string `json:"id,omitempty"`
	Version    uint64 `json:"version,omitempty"`
	Product    string `json:"product,omitempty"`
	ApplyState int    `json:"apply_state,omitempty"`
	ApplyError string `json:"apply_error,omitempty"`
}

type wireClientState struct {
	RootVersion    uint64            `json:"root_version"`
	TargetsVersion uint64            `json:"targets_version"`
	ConfigStates   []wireConfigState `json:"config_states"`
	HasError       bool              `json:"has_error,omitempty"`
	Error          string            `json:"error,omitempty"`
	BackendState   string            `json:"backend_client_state,omitempty"`
}

type wireClientTracer struct {
	RuntimeID     string `json:"runtime_id,omitempty"`
	Language      string `json:"language,omitempty"`
	TracerVersion string `json:"tracer_version,omitempty"`
	Service       string `json:"service,omitempty"`
	Env           string `json:"env,omitempty"`
	AppVersion    string `json:"app_version,omitempty"`
}

type wireClientData struct {
	State        wireClientState  `json:"state"`
	ID           string           `json:"id,omitempty"`
	Products     []string         `json:"products,omitempty"`
	IsTracer     bool             `json:"is_tracer"`
	ClientTracer wireClientTracer `json:"client_tracer"`
	Capabilities []byte           `json:"capabilities,omitempty"`
}

type wireTargetFileMeta struct {
	Path   string `json:"path,omitempty"`
	Length int64  `json:"length,omitempty"`
}

type wireRequest struct {
	Client            wireClientData       `json:"client"`
	CachedTargetFiles []wireTargetFileMeta `json:"cached_target_files,omitempty"`
}

type wireTargetFile struct {
	Path string `json:"path"`
	Raw  []byte `json:"raw"`
}

type wireResponse struct {
	Targets       []byte           `json:"targets"`
	TargetFiles   []wireTargetFile `json:"target_files"`
	ClientConfigs []string         `json:"client_configs"`
}

type signedTargetMeta struct {
	Hashes struct {
		Sha256 string `json:"sha256"`
	} `json:"hashes"`
}

type signedTargets struct {
	Version uint64 `json:"version"`
	Custom  struct {
		OpaqueBackendState string `json:"opaque_backend_state"`
	} `json:"custom"`
	Targets map[string]signedTargetMeta `json:"targets"`
}

type targetsEnvelope struct {
	Signed signedTargets `json:"signed"`
}

// serviceTarget is an optional field inside a decoded config's own raw
// content, used by process_response step 3 to validate the config is
// addressed to this tracer.
type serviceTarget struct {
	ServiceTarget *struct {
		Service string `json:"service"`
		Env     string `json:"env"`
	} `json:"service_target"`
}

// MakeRequestPayload builds the JSON body for a /v0.7/config poll.
func (m *Manager) MakeRequestPayload() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	productSet := map[string]bool{}
	var capabilities uint64
	for _, l := range m.listeners {
		for _, p := range l.Products() {
			productSet[p] = true
		}
		capabilities |= l.Capabilities()
	}
	products := make([]string, 0, len(productSet))
	for p := range productSet {
		products = append(products, p)
	}

	capBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(capBytes, capabilities)

	configStates := make([]wireConfigState, 0, len(m.applied))
	cachedFiles := make([]wireTargetFileMeta, 0, len(m.applied))
	for path, ac := range m.applied {
		cs := wireConfigState{
			ID:         ac.id,
			Version:    ac.version,
			Product:    ac.product,
			ApplyState: int(ac.state) + 1, // wire enum is 1-based (teacher's rc.ApplyState)
			ApplyError: ac.errMsg,
		}
		configStates = append(configStates, cs)
		cachedFiles = append(cachedFiles, wireTargetFileMeta{Path: path, Length: int64(len(ac.content))})
	}

	req := wireRequest{
		Client: wireClientData{
			State: wireClientState{
				RootVersion:    1,
				TargetsVersion: m.targetsVersion,
				ConfigStates:   configStates,
				HasError:       m.lastErrMessage != "",
				Error:          m.lastErrMessage,
				BackendState:   m.backendState,
			},
			ID:       m.clientID,
			Products: products,
			IsTracer: true,
			ClientTracer: wireClientTracer{
				RuntimeID:     m.runtimeID,
				Language:      "go",
				TracerVersion: version.Tag,
				Service:       m.service,
				Env:           m.env,
				AppVersion:    m.appVer,
			},
			Capabilities: capBytes,
		},
		CachedTargetFiles: cachedFiles,
	}
	return json.Marshal(req)
}

// Poll issues one request/response round trip against the agent's
// /v0.7/config endpoint.
func (m *Manager) Poll(ctx context.Context) error {
	payload, err := m.MakeRequestPayload()
	if err != nil {
		return tracerror.Wrap(tracerror.KindEncoding, "remote config request encode failed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.agentURL+"/v0.7/config", bytes.NewReader(payload))
	if err != nil {
		return tracerror.Wrap(tracerror.KindTransport, "remote config request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.recordError(err.Error())
		return tracerror.Wrap(tracerror.KindTransport, "remote config request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// The agent has remote config disabled; treat as an empty response.
		return nil
	}
	body := new(bytes.Buffer)
	if _, err := body.ReadFrom(resp.Body); err != nil {
		m.recordError(err.Error())
		return tracerror.Wrap(tracerror.KindTransport, "remote config response read failed", err)
	}
	if body.Len() == 0 {
		return nil
	}
	return m.ProcessResponse(body.Bytes())
}

func (m *Manager) recordError(msg string) {
	m.mu.Lock()
	m.lastErrMessage = msg
	m.mu.Unlock()
}

// ProcessResponse decodes and applies one Targets/Files response in order.
func (m *Manager) ProcessResponse(body []byte) error {
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		m.recordError(err.Error())
		return tracerror.Wrap(tracerror.KindEncoding, "remote config response decode failed", err)
	}

	// Step 1: base64-decode targets (json already did it into resp.Targets),
	// parse the embedded JSON envelope.
	var envelope targetsEnvelope
	if len(resp.Targets) > 0 {
		if err := json.Unmarshal(resp.Targets, &envelope); err != nil {
			m.recordError(err.Error())
			return tracerror.Wrap(tracerror.KindEncoding, "remote config targets decode failed", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.targetsVersion = envelope.Signed.Version
	m.backendState = envelope.Signed.Custom.OpaqueBackendState

	// Step 2: no client_configs means revert everything.
	if resp.ClientConfigs == nil {
		m.revertAll()
		m.lastErrMessage = ""
		m.postProcessLocked()
		return nil
	}

	wanted := make(map[string]bool, len(resp.ClientConfigs))
	for _, path := range resp.ClientConfigs {
		wanted[path] = true
	}

	// Step 3: apply/update each wanted path.
	for _, pathStr := range resp.ClientConfigs {
		if err := m.applyOne(pathStr, envelope, resp.TargetFiles); err != nil {
			m.lastErrMessage = err.Error()
			m.postProcessLocked()
			return err
		}
	}

	// Step 4: revert anything previously applied that's no longer wanted.
	for path, ac := range m.applied {
		if wanted[path] {
			continue
		}
		m.dispatchRevert(ac)
		delete(m.applied, path)
	}

	m.lastErrMessage = ""
	m.postProcessLocked()
	return nil
}

func (m *Manager) applyOne(pathStr string, envelope targetsEnvelope, files []wireTargetFile) error {
	parsed, ok := ParsePath(pathStr)
	if !ok {
		return tracerror.New(tracerror.KindConfig, "malformed remote config path: "+pathStr)
	}

	meta, ok := envelope.Signed.Targets[pathStr]
	if !ok {
		return tracerror.New(tracerror.KindConfig, "missing signed target metadata: "+pathStr)
	}

	if existing, ok := m.applied[pathStr]; ok && existing.hash == meta.Hashes.Sha256 {
		return nil
	}

	var raw []byte
	found := false
	for _, f := range files {
		if f.Path == pathStr {
			raw = f.Raw
			found = true
			break
		}
	}
	if !found {
		return tracerror.New(tracerror.KindConfig, "missing target file: "+pathStr)
	}

	ac := &appliedConfig{
		id:      parsed.ConfigID,
		path:    parsed,
		hash:    meta.Hashes.Sha256,
		version: envelope.Signed.Version,
		content: raw,
		product: parsed.Product,
	}

	var st serviceTarget
	_ = json.Unmarshal(raw, &st)
	if st.ServiceTarget != nil {
		if st.ServiceTarget.Service != "" && st.ServiceTarget.Service != m.service ||
			st.ServiceTarget.Env != "" && st.ServiceTarget.Env != m.env {
			ac.state = applyError
			ac.errMsg = "Wrong service targeted"
			m.applied[pathStr] = ac
			return nil
		}
	}

	cfg := Config{Path: parsed, Raw: raw, Version: envelope.Signed.Version}
	dispatched := false
	anyErr := ""
	for _, l := range m.listeners {
		if !productMatches(l.Products(), parsed.Product) {
			continue
		}
		dispatched = true
		if errMsg := l.OnUpdate(cfg); errMsg != "" {
			anyErr = errMsg
		}
	}
	if !dispatched {
		ac.state = applyUnacknowledged
	} else if anyErr != "" {
		ac.state = applyError
		ac.errMsg = anyErr
	} else {
		ac.state = applyAcknowledged
	}
	m.applied[pathStr] = ac
	return nil
}

func (m *Manager) revertAll() {
	for path, ac := range m.applied {
		m.dispatchRevert(ac)
		delete(m.applied, path)
	}
}

func (m *Manager) dispatchRevert(ac *appliedConfig) {
	cfg := Config{Path: ac.path, Raw: ac.content, Version: ac.version}
	for _, l := range m.listeners {
		if productMatches(l.Products(), ac.product) {
			l.OnRevert(cfg)
		}
	}
}

func (m *Manager) postProcessLocked() {
	for _, l := range m.listeners {
		l.OnPostProcess()
	}
}

func productMatches(products []string, product string) bool {
	for _, p := range products {
		if p == product {
			return true
		}
	}
	return false
}
