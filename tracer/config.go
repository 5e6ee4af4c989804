// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tracecore/tracecore/internal/env"
	"github.com/tracecore/tracecore/internal/globalconfig"
	"github.com/tracecore/tracecore/internal/matcher"
	"github.com/tracecore/tracecore/internal/propagation"
	"github.com/tracecore/tracecore/internal/sampler"
	"github.com/tracecore/tracecore/internal/tracerror"
)

// config holds the finalized, validated configuration a Tracer is built
// from. Grounded on the teacher's tracer/config.go-style option struct
// (file stripped from this pack; reconstructed from the enumerated options
// internal/env's typed getters expose).
type config struct {
	serviceName string
	env         string
	version     string
	tags        map[string]string

	enabled      bool
	traceID128   bool
	agentURL     string
	httpClient   *http.Client

	sampleRate     float64
	hasSampleRate  bool
	rateLimit      float64
	samplingRules  []*sampler.TraceRule
	spanSampling   []*sampler.SpanRule

	extractStyles []propagation.Style
	injectStyles  []propagation.Style
	baggageEnabled bool
	baggageMaxItems int
	baggageMaxBytes int

	telemetryEnabled        bool
	telemetryMetricsInterval time.Duration
	flushInterval           time.Duration
	rcPollInterval          time.Duration

	hostname string
}

// StartOption configures a Tracer at construction time.
type StartOption func(*config)

// WithService sets the tracer's default service name.
func WithService(name string) StartOption { return func(c *config) { c.serviceName = name } }

// WithEnv sets the tracer's environment tag.
func WithEnv(e string) StartOption { return func(c *config) { c.env = e } }

// WithServiceVersion sets the tracer's version tag.
func WithServiceVersion(v string) StartOption { return func(c *config) { c.version = v } }

// WithGlobalTag adds a tag applied to every span created by this tracer.
func WithGlobalTag(key, value string) StartOption {
	return func(c *config) {
		if c.tags == nil {
			c.tags = make(map[string]string)
		}
		c.tags[key] = value
	}
}

// WithAgentAddr sets the agent URL (scheme://host:port, or a unix+http(s)
// URL naming a socket path).
func WithAgentAddr(url string) StartOption { return func(c *config) { c.agentURL = url } }

// WithSampleRate sets the default trace sampling rate, overridable by
// DD_TRACE_SAMPLE_RATE.
func WithSampleRate(rate float64) StartOption {
	return func(c *config) { c.sampleRate = rate; c.hasSampleRate = true }
}

// WithRateLimit sets the global trace rate limit (traces/second).
func WithRateLimit(limit float64) StartOption { return func(c *config) { c.rateLimit = limit } }

// WithPropagationStyles overrides both extraction and injection style
// lists.
func WithPropagationStyles(styles []propagation.Style) StartOption {
	return func(c *config) { c.extractStyles = styles; c.injectStyles = styles }
}

// With128BitTraceIDs enables 128-bit trace ID generation for new traces.
func With128BitTraceIDs(enabled bool) StartOption {
	return func(c *config) { c.traceID128 = enabled }
}

// WithHTTPClient overrides the HTTP client used for the agent collector,
// remote config, and telemetry.
func WithHTTPClient(client *http.Client) StartOption {
	return func(c *config) { c.httpClient = client }
}

func defaultConfig() *config {
	return &config{
		serviceName:     filepath.Base(os.Args[0]),
		enabled:         true,
		agentURL:        "http://localhost:8126",
		rateLimit:       100,
		extractStyles:   propagation.DefaultStyles(),
		injectStyles:    propagation.DefaultStyles(),
		baggageEnabled:  true,
		baggageMaxItems: propagation.DefaultBaggageMaxItems,
		baggageMaxBytes: propagation.DefaultBaggageMaxBytes,
		telemetryEnabled:         true,
		telemetryMetricsInterval: 10 * time.Second,
		flushInterval:            2 * time.Second,
		rcPollInterval:           5 * time.Second,
	}
}

// finalizeConfig builds a config from defaults, applies opts, then applies
// env var overrides (env vars take precedence over options), and validates
// the result. Returned errors are tracerror.KindConfig; the tracer is never
// constructed on a validation failure.
func finalizeConfig(opts ...StartOption) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	applyEnvOverrides(cfg)

	if cfg.serviceName == "" {
		return nil, tracerror.New(tracerror.KindConfig, "service name is required")
	}
	baseURL, client, err := resolveAgentTransport(cfg.agentURL, cfg.httpClient)
	if err != nil {
		return nil, err
	}
	cfg.agentURL = baseURL
	cfg.httpClient = client

	if cfg.hasSampleRate && (cfg.sampleRate < 0 || cfg.sampleRate > 1) {
		return nil, tracerror.New(tracerror.KindConfig, "sample rate out of range [0,1]")
	}

	if h, err := os.Hostname(); err == nil {
		cfg.hostname = h
	}

	globalconfig.SetServiceName(cfg.serviceName)
	return cfg, nil
}

func applyEnvOverrides(cfg *config) {
	if v := env.Getenv("DD_SERVICE"); v != "" {
		cfg.serviceName = v
	}
	if v := env.Getenv("DD_ENV"); v != "" {
		cfg.env = v
	}
	if v := env.Getenv("DD_VERSION"); v != "" {
		cfg.version = v
	}
	if v := env.Getenv("DD_TAGS"); v != "" {
		for k, val := range parseDDTags(v) {
			if cfg.tags == nil {
				cfg.tags = make(map[string]string)
			}
			cfg.tags[k] = val
		}
	}
	cfg.enabled = env.Bool("DD_TRACE_ENABLED", cfg.enabled)
	cfg.traceID128 = env.Bool("DD_TRACE_128_BIT_TRACEID_GENERATION_ENABLED", cfg.traceID128)
	if v := env.Getenv("DD_TRACE_AGENT_URL"); v != "" {
		cfg.agentURL = v
	} else if host := env.Getenv("DD_AGENT_HOST"); host != "" {
		port := env.String("DD_TRACE_AGENT_PORT", "8126")
		cfg.agentURL = "http://" + host + ":" + port
	}
	if _, ok := env.LookupEnv("DD_TRACE_SAMPLE_RATE"); ok {
		cfg.sampleRate = env.Float64("DD_TRACE_SAMPLE_RATE", cfg.sampleRate)
		cfg.hasSampleRate = true
	}
	cfg.rateLimit = env.Float64("DD_TRACE_RATE_LIMIT", cfg.rateLimit)
	if v := env.Getenv("DD_TRACE_SAMPLING_RULES"); v != "" {
		if rules, err := parseTraceSamplingRules(v); err == nil {
			cfg.samplingRules = rules
		}
	}
	if v := env.Getenv("DD_SPAN_SAMPLING_RULES"); v != "" {
		if rules, err := parseSpanSamplingRules(v); err == nil {
			cfg.spanSampling = rules
		}
	}
	if v := env.Getenv("DD_TRACE_PROPAGATION_STYLE"); v != "" {
		styles := propagation.ParseStyles(v)
		cfg.extractStyles = styles
		cfg.injectStyles = styles
	}
	if v := env.Getenv("DD_TRACE_PROPAGATION_STYLE_EXTRACT"); v != "" {
		cfg.extractStyles = propagation.ParseStyles(v)
	}
	if v := env.Getenv("DD_TRACE_PROPAGATION_STYLE_INJECT"); v != "" {
		cfg.injectStyles = propagation.ParseStyles(v)
	}
	cfg.baggageMaxItems = int(env.Float64("DD_TRACE_BAGGAGE_MAX_ITEMS", float64(cfg.baggageMaxItems)))
	cfg.baggageMaxBytes = int(env.Float64("DD_TRACE_BAGGAGE_MAX_BYTES", float64(cfg.baggageMaxBytes)))
	cfg.telemetryEnabled = env.Bool("DD_INSTRUMENTATION_TELEMETRY_ENABLED", cfg.telemetryEnabled)
	cfg.telemetryMetricsInterval = env.Duration("DD_TELEMETRY_METRICS_INTERVAL_SECONDS", cfg.telemetryMetricsInterval)
}

// parseDDTags parses DD_TAGS's comma- or space-separated "k:v" pairs.
func parseDDTags(raw string) map[string]string {
	sep := ","
	if !strings.Contains(raw, ",") && strings.Contains(raw, " ") {
		sep = " "
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, sep) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	return out
}

// traceSamplingRuleJSON mirrors DD_TRACE_SAMPLING_RULES' wire schema
// exactly — trace_sampler_config.cpp's allowed_properties is
// {"service","name","resource","tags","sample_rate"}, with no per-rule
// max_per_second: trace-sampling rules share the sampler's one rate
// limiter (see sampler.TraceSampler), unlike span-sampling rules below.
type traceSamplingRuleJSON struct {
	Service    string            `json:"service"`
	Name       string            `json:"name"`
	Resource   string            `json:"resource"`
	SampleRate float64           `json:"sample_rate"`
	Tags       map[string]string `json:"tags"`
}

type samplingRuleJSON struct {
	Service      string            `json:"service"`
	Name         string            `json:"name"`
	Resource     string            `json:"resource"`
	SampleRate   float64           `json:"sample_rate"`
	Tags         map[string]string `json:"tags"`
	MaxPerSecond float64           `json:"max_per_second"`
}

func parseTraceSamplingRules(raw string) ([]*sampler.TraceRule, error) {
	var specs []traceSamplingRuleJSON
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, tracerror.Wrap(tracerror.KindConfig, "DD_TRACE_SAMPLING_RULES invalid JSON", err)
	}
	rules := make([]*sampler.TraceRule, 0, len(specs))
	for _, s := range specs {
		if s.SampleRate < 0 || s.SampleRate > 1 {
			return nil, tracerror.New(tracerror.KindConfig, "DD_TRACE_SAMPLING_RULES: sample_rate out of range")
		}
		m := matcher.NewRule(s.Service, s.Name, s.Resource, s.Tags)
		rules = append(rules, &sampler.TraceRule{Matcher: m, Rate: sampler.Rate(s.SampleRate)})
	}
	return rules, nil
}

func parseSpanSamplingRules(raw string) ([]*sampler.SpanRule, error) {
	var specs []samplingRuleJSON
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, tracerror.Wrap(tracerror.KindConfig, "DD_SPAN_SAMPLING_RULES invalid JSON", err)
	}
	rules := make([]*sampler.SpanRule, 0, len(specs))
	for _, s := range specs {
		if s.SampleRate < 0 || s.SampleRate > 1 {
			return nil, tracerror.New(tracerror.KindConfig, "DD_SPAN_SAMPLING_RULES: sample_rate out of range")
		}
		m := matcher.NewRule(s.Service, s.Name, s.Resource, s.Tags)
		rules = append(rules, sampler.NewSpanRule(m, sampler.Rate(s.SampleRate), s.MaxPerSecond))
	}
	return rules, nil
}

// resolveAgentTransport validates the agent URL's scheme (http, https,
// unix, http+unix, https+unix) and, for the unix variants, builds an
// http.Client dialing the socket directly while the request URL keeps
// "http://localhost<path>" as its textual form.
func resolveAgentTransport(raw string, override *http.Client) (string, *http.Client, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, tracerror.Wrap(tracerror.KindConfig, "agent URL missing separator", err)
	}
	switch u.Scheme {
	case "http", "https":
		if override != nil {
			return raw, override, nil
		}
		return raw, &http.Client{Timeout: 10 * time.Second}, nil
	case "unix", "http+unix", "https+unix":
		socketPath := u.Path
		if socketPath == "" {
			socketPath = u.Opaque
		}
		if socketPath == "" {
			return "", nil, tracerror.New(tracerror.KindConfig, "unix agent URL missing socket path")
		}
		dialer := &net.Dialer{}
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		}
		client := &http.Client{Transport: transport, Timeout: 10 * time.Second}
		return "http://localhost" + socketPath, client, nil
	default:
		return "", nil, tracerror.New(tracerror.KindConfig, "unsupported agent URL scheme: "+u.Scheme)
	}
}
