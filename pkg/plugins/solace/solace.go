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

// Package solace publishes to and subscribes on a Solace PubSub+ topic
// using direct messaging.
//
//	solace:<topic>?host=tcp://localhost:55555&vpn=default&username=admin
package solace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/message"
	"solace.dev/go/messaging/pkg/solace/resource"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "solace"

const HeaderDestination = "SolaceDestination"

const terminateGrace = 5 * time.Second

type Config struct {
	Topic    string
	Host     string
	VPN      string
	Username string
	Password string
	Format   codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Topic: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "host", Required: true}, &cfg.Host)
	b.String(endpoint.Option{Name: "vpn", Default: "default"}, &cfg.VPN)
	b.String(endpoint.Option{Name: "username"}, &cfg.Username)
	b.String(endpoint.Option{Name: "password"}, &cfg.Password)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Topic != "", "topic is required")
	return cfg, b.Finish()
}

type Component struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Component { return &Component{logger: logger} }

func (c *Component) Scheme() string                  { return Scheme }
func (c *Component) Capabilities() core.Capabilities { return core.Bidirectional }

func (c *Component) NewEndpoint(d *endpoint.Descriptor) (endpoint.Endpoint, error) {
	cfg, err := ParseConfig(d)
	if err != nil {
		return nil, err
	}
	return &Endpoint{desc: d, config: cfg, logger: c.logger.With("endpoint", d.URI())}, nil
}

type Endpoint struct {
	desc   *endpoint.Descriptor
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	service   solace.MessagingService
	publisher solace.DirectMessagePublisher
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	service, err := messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(e.serviceProperties()).
		Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err := service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	publisher, err := service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err := publisher.Start(); err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher start: %w", err)
	}

	e.mu.Lock()
	e.service = service
	e.publisher = publisher
	e.mu.Unlock()
	e.logger.Info("solace endpoint connected", "host", e.config.Host, "vpn", e.config.VPN)
	return nil
}

func (e *Endpoint) serviceProperties() config.ServicePropertyMap {
	props := config.ServicePropertyMap{
		config.TransportLayerPropertyHost: e.config.Host,
		config.ServicePropertyVPNName:     e.config.VPN,
	}
	if e.config.Username != "" {
		props[config.AuthenticationPropertySchemeBasicUserName] = e.config.Username
		props[config.AuthenticationPropertySchemeBasicPassword] = e.config.Password
	}
	return props
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	service, publisher := e.service, e.publisher
	e.service, e.publisher = nil, nil
	e.mu.Unlock()

	if publisher != nil {
		if err := publisher.Terminate(terminateGrace); err != nil {
			e.logger.Warn("solace publisher terminate failed", "error", err)
		}
	}
	if service == nil {
		return nil
	}
	return service.Disconnect()
}

func (e *Endpoint) connection() (solace.MessagingService, solace.DirectMessagePublisher, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.service == nil {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}
	return e.service, e.publisher, nil
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.publish), nil
}

func (e *Endpoint) publish(ctx context.Context, msg *core.Message) error {
	service, publisher, err := e.connection()
	if err != nil {
		return err
	}
	payload, err := codec.Encode(e.config.Format, msg.Body)
	if err != nil {
		return core.ConfigErrorf("encode body: %v", err)
	}
	builder := service.MessageBuilder()
	for k, v := range userProperties(msg) {
		builder = builder.WithProperty(k, v)
	}
	out, err := builder.BuildWithByteArrayPayload(payload)
	if err != nil {
		return core.NewBackendError(e.desc.URI(), "build", err)
	}
	if err := publisher.Publish(out, resource.TopicOf(e.config.Topic)); err != nil {
		return core.NewBackendError(e.desc.URI(), "publish", err)
	}
	return nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	service, _, err := e.connection()
	if err != nil {
		return err
	}

	receiver, err := service.CreateDirectMessageReceiverBuilder().
		WithSubscriptions(resource.TopicSubscriptionOf(e.config.Topic)).
		Build()
	if err != nil {
		return fmt.Errorf("solace receiver build: %w", err)
	}
	if err := receiver.Start(); err != nil {
		return fmt.Errorf("solace receiver start: %w", err)
	}
	defer receiver.Terminate(terminateGrace)

	in := make(chan message.InboundMessage)
	if err := receiver.ReceiveAsync(func(m message.InboundMessage) {
		select {
		case in <- m:
		case <-ctx.Done():
		}
	}); err != nil {
		return fmt.Errorf("solace receive: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-in:
			payload, _ := m.GetPayloadAsBytes()
			if err := dispatch(toMessage(m.GetDestinationName(), payload, m.GetProperties()), nil, nil); err != nil {
				return err
			}
		}
	}
}

// userProperties maps string headers onto Solace user properties.
func userProperties(msg *core.Message) config.MessagePropertyMap {
	props := make(config.MessagePropertyMap)
	for k, v := range msg.StringHeaders() {
		props[config.MessageProperty(k)] = v
	}
	return props
}

func toMessage(destination string, payload []byte, props config.MessagePropertyMap) *core.Message {
	msg := core.NewMessage(payload)
	for k, v := range props {
		msg.SetHeader(string(k), v)
	}
	msg.SetHeader(HeaderDestination, destination)
	return msg
}
