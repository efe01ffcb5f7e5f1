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

package compute

import (
	"log/slog"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

// Component creates compute endpoints over one injected Grid.
type Component struct {
	grid   Grid
	logger *slog.Logger
}

func New(grid Grid, logger *slog.Logger) *Component {
	return &Component{grid: grid, logger: logger}
}

func (c *Component) Scheme() string                  { return Scheme }
func (c *Component) Capabilities() core.Capabilities { return core.ProducerOnly }

func (c *Component) NewEndpoint(d *endpoint.Descriptor) (endpoint.Endpoint, error) {
	cfg, err := ParseConfig(d)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		desc:    d,
		config:  cfg,
		backend: NewBackend(c.grid, cfg, d.URI()),
		logger:  c.logger.With("endpoint", d.URI()),
	}, nil
}

type Endpoint struct {
	desc    *endpoint.Descriptor
	config  Config
	backend *Backend
	logger  *slog.Logger
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }
func (e *Endpoint) Config() Config                   { return e.config }

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return &Producer{config: e.config, backend: e.backend, logger: e.logger}, nil
}

func (e *Endpoint) CreateConsumer(core.Sink) (core.Consumer, error) {
	return nil, endpoint.ConsumerNotSupported(e.desc)
}
