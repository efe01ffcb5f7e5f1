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

// Package mqtt publishes to and subscribes on an MQTT v3.1.1 topic.
//
//	mqtt:<topic>?broker=tcp://localhost:1883&qos=1&cleanSession=false
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "mqtt"

const (
	HeaderTopic     = "MqttTopic"
	HeaderMessageID = "MqttMessageId"
	HeaderQoS       = "MqttQos"
	HeaderRetained  = "MqttRetained"
	HeaderDuplicate = "MqttDuplicate"
)

type Config struct {
	Topic          string
	Broker         string
	QoS            int
	ClientID       string
	CleanSession   bool
	Retain         bool
	ConnectTimeout time.Duration
	Format         codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Topic: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "broker", Required: true}, &cfg.Broker)
	b.Int(endpoint.Option{Name: "qos", Default: "1"}, &cfg.QoS)
	b.String(endpoint.Option{Name: "clientId"}, &cfg.ClientID)
	b.Bool(endpoint.Option{Name: "cleanSession", Default: "true"}, &cfg.CleanSession)
	b.Bool(endpoint.Option{Name: "retain", Default: "false"}, &cfg.Retain)
	b.Duration(endpoint.Option{Name: "connectTimeout", Default: "10s"}, &cfg.ConnectTimeout)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Topic != "", "topic is required")
	b.Check(cfg.QoS >= 0 && cfg.QoS <= 2, "option qos must be 0, 1 or 2, got %d", cfg.QoS)
	b.Check(cfg.CleanSession || cfg.ClientID != "", "cleanSession=false needs a fixed clientId")
	if cfg.ClientID == "" {
		cfg.ClientID = "connector-" + uuid.New().String()[:8]
	}
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

	mu      sync.RWMutex
	client  pahomqtt.Client
	handler pahomqtt.MessageHandler
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(e.config.Broker).
		SetClientID(e.config.ClientID).
		SetCleanSession(e.config.CleanSession).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetAutoAckDisabled(true).
		SetConnectTimeout(e.config.ConnectTimeout).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			e.logger.Info("mqtt client connected")
			e.resubscribe(c)
		}).
		SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
			e.logger.Warn("mqtt connection lost", "error", err)
		})

	client := pahomqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.mu.Unlock()
	e.logger.Info("mqtt endpoint connected", "broker", e.config.Broker)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	client := e.client
	e.client = nil
	e.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
	}
	return nil
}

// resubscribe restores the consumer subscription after an automatic
// reconnect.
func (e *Endpoint) resubscribe(c pahomqtt.Client) {
	e.mu.RLock()
	h := e.handler
	e.mu.RUnlock()
	if h == nil {
		return
	}
	if t := c.Subscribe(e.config.Topic, byte(e.config.QoS), h); t.Wait() && t.Error() != nil {
		e.logger.Error("mqtt resubscribe failed", "error", t.Error())
	}
}

func (e *Endpoint) connection() (pahomqtt.Client, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}
	return e.client, nil
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.publish), nil
}

func (e *Endpoint) publish(ctx context.Context, msg *core.Message) error {
	client, err := e.connection()
	if err != nil {
		return err
	}
	payload, err := codec.Encode(e.config.Format, msg.Body)
	if err != nil {
		return core.ConfigErrorf("encode body: %v", err)
	}
	if err := wait(ctx, client.Publish(e.config.Topic, byte(e.config.QoS), e.config.Retain, payload)); err != nil {
		return core.NewBackendError(e.desc.URI(), "publish", err)
	}
	return nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	client, err := e.connection()
	if err != nil {
		return err
	}

	in := make(chan pahomqtt.Message)
	handler := func(_ pahomqtt.Client, m pahomqtt.Message) {
		select {
		case in <- m:
		case <-ctx.Done():
		}
	}

	e.mu.Lock()
	if e.handler != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s has an active subscription", core.ErrAlreadyStarted, e.desc.URI())
	}
	e.handler = handler
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.handler = nil
		e.mu.Unlock()
	}()

	if err := wait(ctx, client.Subscribe(e.config.Topic, byte(e.config.QoS), handler)); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	defer client.Unsubscribe(e.config.Topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-in:
			ack := func(context.Context) error { m.Ack(); return nil }
			if err := dispatch(fromMQTT(m), ack, nil); err != nil {
				return err
			}
		}
	}
}

// wait blocks until t completes or ctx is done.
func wait(ctx context.Context, t pahomqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fromMQTT(m pahomqtt.Message) *core.Message {
	msg := core.NewMessage(m.Payload())
	msg.SetHeader(HeaderTopic, m.Topic())
	msg.SetHeader(HeaderMessageID, int(m.MessageID()))
	msg.SetHeader(HeaderQoS, int(m.Qos()))
	msg.SetHeader(HeaderRetained, m.Retained())
	msg.SetHeader(HeaderDuplicate, m.Duplicate())
	return msg
}
