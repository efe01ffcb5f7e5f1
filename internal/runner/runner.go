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

// Package runner runs routes: each route feeds the messages received by a
// consumer endpoint into the producer of a second endpoint.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

// Resolver hands out endpoints and their producers and consumers.
// *plugins.Registry implements it.
type Resolver interface {
	Endpoint(uri string, params map[string]string) (endpoint.Endpoint, error)
	CreateProducer(ep endpoint.Endpoint) (core.Producer, error)
	CreateConsumer(ep endpoint.Endpoint, sink core.Sink) (core.Consumer, error)
	ConnectEndpoints(ctx context.Context) int
	IsEndpointHealthy(uri string) bool
}

type activeRoute struct {
	route    core.Route
	consumer core.Consumer
}

// monitored is implemented by consumers that report the exit of their
// receive loop, such as *core.LoopConsumer.
type monitored interface {
	Done() <-chan struct{}
	Err() error
}

type Manager struct {
	routes   *routing.Table
	resolver Resolver
	logger   *slog.Logger
	msgLog   *logging.MessageLogger

	// reload serializes Reload and Retry.
	reload sync.Mutex

	mu     sync.Mutex
	active map[string]*activeRoute
	// pending holds configured routes that are not running: they failed to
	// start or their consumer exited. Retry starts them again.
	pending map[string]core.Route
}

func NewManager(routes *routing.Table, resolver Resolver, logger *slog.Logger, msgLog *logging.MessageLogger) *Manager {
	return &Manager{
		routes:   routes,
		resolver: resolver,
		logger:   logger,
		msgLog:   msgLog,
		active:   make(map[string]*activeRoute),
		pending:  make(map[string]core.Route),
	}
}

func validate(route core.Route) error {
	switch {
	case route.Name == "":
		return core.ConfigErrorf("route name is required")
	case route.From == "":
		return core.ConfigErrorf("route %s: from is required", route.Name)
	case route.To == "":
		return core.ConfigErrorf("route %s: to is required", route.Name)
	}
	return nil
}

// Start resolves both endpoints of route, connects them and starts the
// consumer. A route already running under the same name is an error.
func (m *Manager) Start(ctx context.Context, route core.Route) error {
	if err := validate(route); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.active[route.Name]; running {
		return fmt.Errorf("%w: route %s", core.ErrAlreadyStarted, route.Name)
	}

	from, err := m.resolver.Endpoint(route.From, nil)
	if err != nil {
		return fmt.Errorf("route %s: from: %w", route.Name, err)
	}
	to, err := m.resolver.Endpoint(route.To, nil)
	if err != nil {
		return fmt.Errorf("route %s: to: %w", route.Name, err)
	}

	m.resolver.ConnectEndpoints(ctx)
	for _, ep := range []endpoint.Endpoint{from, to} {
		if !m.resolver.IsEndpointHealthy(ep.Descriptor().URI()) {
			return fmt.Errorf("%w: route %s: %s", core.ErrEndpointUnavailable, route.Name, ep.Descriptor().URI())
		}
	}

	producer, err := m.resolver.CreateProducer(to)
	if err != nil {
		return fmt.Errorf("route %s: to: %w", route.Name, err)
	}
	consumer, err := m.resolver.CreateConsumer(from, m.sink(route, producer))
	if err != nil {
		return fmt.Errorf("route %s: from: %w", route.Name, err)
	}
	if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("route %s: %w", route.Name, err)
	}

	ar := &activeRoute{route: route, consumer: consumer}
	m.active[route.Name] = ar
	m.routes.Add(route)
	if mc, ok := consumer.(monitored); ok {
		go m.watch(ar, mc)
	}
	m.logger.Info("route started", "route", route.Name, "from", route.From, "to", route.To)
	return nil
}

// watch re-queues the route of ar when its consumer exits on its own. A
// route stopped through Stop is no longer active and is left alone.
func (m *Manager) watch(ar *activeRoute, mc monitored) {
	done := mc.Done()
	if done == nil {
		return
	}
	<-done

	name := ar.route.Name
	m.mu.Lock()
	if m.active[name] != ar {
		m.mu.Unlock()
		return
	}
	delete(m.active, name)
	m.pending[name] = ar.route
	m.mu.Unlock()

	m.routes.Remove(name)
	m.logger.Warn("route consumer exited, route queued for retry", "route", name, "error", mc.Err())
}

func (m *Manager) sink(route core.Route, producer core.Producer) core.Sink {
	return core.SinkFunc(func(ctx context.Context, msg *core.Message) error {
		m.logMessage(msg, route, "received")
		if err := producer.Process(ctx, msg); err != nil {
			m.logMessage(msg, route, "failed")
			m.logger.Warn("route producer failed", "route", route.Name, "message_id", msg.ID, "error", err)
			return err
		}
		m.logMessage(msg, route, "processed")
		return nil
	})
}

func (m *Manager) logMessage(msg *core.Message, route core.Route, stage string) {
	if m.msgLog != nil {
		m.msgLog.Log(msg, route, stage)
	}
}

// Stop stops the consumer of the named route and drops it from the table.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	ar, ok := m.active[name]
	delete(m.active, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNoRoute, name)
	}
	m.routes.Remove(name)

	if err := ar.consumer.Stop(ctx); err != nil {
		return fmt.Errorf("route %s: %w", name, err)
	}
	m.logger.Info("route stopped", "route", name)
	return nil
}

// Reload brings the running routes in line with routes: routes that were
// removed or redefined are stopped and new or redefined ones are started.
// Unchanged routes keep running. A route that fails to start is left out
// of the table and queued for Retry. Failures are collected and returned
// together.
func (m *Manager) Reload(ctx context.Context, routes []core.Route) error {
	m.reload.Lock()
	defer m.reload.Unlock()

	var errs []error
	valid := make([]core.Route, 0, len(routes))
	for _, r := range routes {
		if err := validate(r); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, r)
	}

	// Every pending route still configured is absent from the table, so
	// ReplaceAll reports it as added and it is started below.
	m.mu.Lock()
	clear(m.pending)
	m.mu.Unlock()

	removed, added := m.routes.ReplaceAll(valid)
	for _, r := range removed {
		if err := m.Stop(ctx, r.Name); err != nil && !errors.Is(err, core.ErrNoRoute) {
			errs = append(errs, err)
		}
	}
	for _, r := range added {
		if err := m.Start(ctx, r); err != nil {
			m.routes.Remove(r.Name)
			m.queue(r)
			errs = append(errs, err)
		}
	}

	m.logger.Info("routes reloaded", "stopped", len(removed), "started", len(added), "active", m.ActiveCount())
	return errors.Join(errs...)
}

func (m *Manager) queue(route core.Route) {
	m.mu.Lock()
	m.pending[route.Name] = route
	m.mu.Unlock()
}

// Retry starts the pending routes again and returns how many started.
// Routes that still fail stay pending.
func (m *Manager) Retry(ctx context.Context) int {
	m.reload.Lock()
	defer m.reload.Unlock()

	m.mu.Lock()
	routes := make([]core.Route, 0, len(m.pending))
	for _, r := range m.pending {
		routes = append(routes, r)
	}
	m.mu.Unlock()

	started := 0
	for _, r := range routes {
		err := m.Start(ctx, r)
		if err != nil && !errors.Is(err, core.ErrAlreadyStarted) {
			m.logger.Debug("route retry failed", "route", r.Name, "error", err)
			continue
		}
		m.mu.Lock()
		delete(m.pending, r.Name)
		m.mu.Unlock()
		if err == nil {
			started++
		}
	}
	if started > 0 {
		m.logger.Info("pending routes started", "count", started)
	}
	return started
}

// Pending returns the names of configured routes that are not running.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.pending))
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.Stop(ctx, name); err != nil {
			m.logger.Warn("route stop failed", "route", name, "error", err)
		}
	}
}

func (m *Manager) Active(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[name]
	return ok
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
