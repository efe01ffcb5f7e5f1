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

package endpoint

import (
	"context"
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// Component is the factory for one backend, registered under its scheme.
type Component interface {
	Scheme() string
	Capabilities() core.Capabilities
	// NewEndpoint validates the descriptor's options and returns a
	// configured endpoint. Invalid configuration wraps core.ErrConfig.
	NewEndpoint(d *Descriptor) (Endpoint, error)
}

type Endpoint interface {
	Descriptor() *Descriptor
	CreateProducer() (core.Producer, error)
	CreateConsumer(sink core.Sink) (core.Consumer, error)
}

// Connector is implemented by endpoints that hold a broker connection.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

func ConsumerNotSupported(d *Descriptor) error {
	return fmt.Errorf("%w: the %s endpoint does not support consumers", core.ErrNotSupported, d.Scheme())
}

func ProducerNotSupported(d *Descriptor) error {
	return fmt.Errorf("%w: the %s endpoint does not support producers", core.ErrNotSupported, d.Scheme())
}
