// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package plugins resolves endpoint addresses to backend components and
// hands out producers and consumers according to each component's
// capabilities.
package plugins

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/telemetry"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

type Registry struct {
	components map[string]endpoint.Component
	endpoints  map[string]endpoint.Endpoint
	producers  map[string]core.Producer
	healthy    map[string]bool
	tracer     trace.TracerProvider
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		components: make(map[string]endpoint.Component),
		endpoints:  make(map[string]endpoint.Endpoint),
		producers:  make(map[string]core.Producer),
		healthy:    make(map[string]bool),
		logger:     logger,
	}
}

// SetTracerProvider overrides the global tracer provider for producer spans.
func (r *Registry) SetTracerProvider(tp trace.TracerProvider) {
	r.mu.Lock()
	r.tracer = tp
	r.mu.Unlock()
}

func (r *Registry) Register(c endpoint.Component) {
	r.mu.Lock()
	r.components[c.Scheme()] = c
	r.mu.Unlock()
	r.logger.Info("registered component", "scheme", c.Scheme(), "capabilities", c.Capabilities().String())
}

func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.components))
}

// Endpoint parses uri, merges params into its options and returns the
// endpoint for the resulting address. Addresses that normalize to the same
// URI share one endpoint.
func (r *Registry) Endpoint(uri string, params map[string]string) (endpoint.Endpoint, error) {
	desc, err := endpoint.Parse(uri, params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, ok := r.endpoints[desc.URI()]; ok {
		return ep, nil
	}
	comp, ok := r.components[desc.Scheme()]
	if !ok {
		return nil, core.ConfigErrorf("no component registered for scheme %q", desc.Scheme())
	}
	ep, err := comp.NewEndpoint(desc)
	if err != nil {
		return nil, err
	}
	r.endpoints[desc.URI()] = ep
	r.logger.Info("created endpoint", "uri", desc.URI())
	return ep, nil
}

func (r *Registry) Endpoints() map[string]endpoint.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.endpoints)
}

func (r *Registry) capabilities(d *endpoint.Descriptor) (core.Capabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.components[d.Scheme()]
	if !ok {
		return core.Capabilities{}, core.ConfigErrorf("no component registered for scheme %q", d.Scheme())
	}
	return comp.Capabilities(), nil
}

// CreateProducer returns the producer of ep, creating it on first use. The
// producer records metrics and a trace span for every message.
func (r *Registry) CreateProducer(ep endpoint.Endpoint) (core.Producer, error) {
	d := ep.Descriptor()
	caps, err := r.capabilities(d)
	if err != nil {
		return nil, err
	}
	if !caps.Producer {
		return nil, endpoint.ProducerNotSupported(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.producers[d.URI()]; ok {
		return p, nil
	}
	p, err := ep.CreateProducer()
	if err != nil {
		return nil, err
	}
	wrapped := &instrumentedProducer{
		next:   telemetry.Trace(p, r.tracer, d.Scheme(), d.URI()),
		scheme: d.Scheme(),
	}
	r.producers[d.URI()] = wrapped
	return wrapped, nil
}

// CreateConsumer returns a consumer of ep delivering to sink. Producer-only
// backends always fail with core.ErrNotSupported.
func (r *Registry) CreateConsumer(ep endpoint.Endpoint, sink core.Sink) (core.Consumer, error) {
	d := ep.Descriptor()
	caps, err := r.capabilities(d)
	if err != nil {
		return nil, err
	}
	if !caps.Consumer {
		return nil, endpoint.ConsumerNotSupported(d)
	}

	scheme := d.Scheme()
	counted := core.SinkFunc(func(ctx context.Context, msg *core.Message) error {
		err := sink.Deliver(ctx, msg)
		metrics.ObserveConsumer(scheme, err)
		return err
	})
	return ep.CreateConsumer(counted)
}

// ConnectEndpoints connects every endpoint holding a backend connection that
// is not connected yet and returns how many connected in this call.
func (r *Registry) ConnectEndpoints(ctx context.Context) int {
	r.mu.RLock()
	pending := make(map[string]endpoint.Connector)
	for uri, ep := range r.endpoints {
		if c, ok := ep.(endpoint.Connector); ok && !r.healthy[uri] {
			pending[uri] = c
		}
	}
	r.mu.RUnlock()

	connected := 0
	for uri, c := range pending {
		err := c.Connect(ctx)
		if err != nil {
			r.logger.Error("endpoint connect failed", "uri", uri, "error", err)
		} else {
			connected++
		}
		r.mu.Lock()
		r.healthy[uri] = err == nil
		r.mu.Unlock()
		metrics.SetEndpointUp(uri, err == nil)
	}
	return connected
}

// IsEndpointHealthy reports whether the endpoint for uri is usable.
// Endpoints without a backend connection are always healthy.
func (r *Registry) IsEndpointHealthy(uri string) bool {
	desc, err := endpoint.Parse(uri, nil)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[desc.URI()]
	if !ok {
		return false
	}
	if _, isConn := ep.(endpoint.Connector); !isConn {
		return true
	}
	return r.healthy[desc.URI()]
}

func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uri, ep := range r.endpoints {
		c, ok := ep.(endpoint.Connector)
		if !ok || !r.healthy[uri] {
			continue
		}
		r.logger.Info("stopping endpoint", "uri", uri)
		if err := c.Disconnect(ctx); err != nil {
			r.logger.Warn("endpoint disconnect failed", "uri", uri, "error", err)
		}
		r.healthy[uri] = false
		metrics.SetEndpointUp(uri, false)
	}
}

type instrumentedProducer struct {
	next   core.Producer
	scheme string
}

func (p *instrumentedProducer) Process(ctx context.Context, msg *core.Message) error {
	start := time.Now()
	err := p.next.Process(ctx, msg)
	metrics.ObserveProducer(p.scheme, outcome(err), time.Since(start))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, core.ErrConfig):
		return "config_error"
	case errors.Is(err, core.ErrBackend):
		return "backend_error"
	default:
		return "error"
	}
}
