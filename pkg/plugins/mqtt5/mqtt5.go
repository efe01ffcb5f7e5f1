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

// Package mqtt5 publishes to and subscribes on an MQTT v5 topic through an
// auto-reconnecting paho connection.
//
//	mqtt5:<topic>?broker=mqtt://localhost:1883&qos=1
package mqtt5

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "mqtt5"

const (
	HeaderTopic    = "MqttTopic"
	HeaderQoS      = "MqttQos"
	HeaderRetained = "MqttRetained"
)

type Config struct {
	Topic    string
	Broker   *url.URL
	QoS      int
	ClientID string
	Retain   bool
	Format   codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Topic: d.Path()}
	b := endpoint.NewBinder(d)
	b.Func(endpoint.Option{Name: "broker", Required: true}, func(s string) error {
		u, err := url.Parse(s)
		if err != nil {
			return err
		}
		if u.Host == "" {
			return fmt.Errorf("missing host")
		}
		cfg.Broker = u
		return nil
	})
	b.Int(endpoint.Option{Name: "qos", Default: "1"}, &cfg.QoS)
	b.String(endpoint.Option{Name: "clientId"}, &cfg.ClientID)
	b.Bool(endpoint.Option{Name: "retain", Default: "false"}, &cfg.Retain)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Topic != "", "topic is required")
	b.Check(cfg.QoS >= 0 && cfg.QoS <= 2, "option qos must be 0, 1 or 2, got %d", cfg.QoS)
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
	return &Endpoint{
		desc:        d,
		config:      cfg,
		logger:      c.logger.With("endpoint", d.URI()),
		subscribers: make(map[chan *paho.Publish]chan struct{}),
	}, nil
}

type Endpoint struct {
	desc   *endpoint.Descriptor
	config Config
	logger *slog.Logger

	mu          sync.RWMutex
	cm          *autopaho.ConnectionManager
	subscribers map[chan *paho.Publish]chan struct{}
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{e.config.Broker},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			e.logger.Info("mqtt5 connection up")
		},
		OnConnectError: func(err error) {
			e.logger.Warn("mqtt5 connect attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: e.config.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					e.forward(pr.Packet)
					return true, nil
				},
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	e.mu.Lock()
	e.cm = cm
	e.mu.Unlock()
	e.logger.Info("mqtt5 endpoint connected", "broker", e.config.Broker.String())
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	cm := e.cm
	e.cm = nil
	e.mu.Unlock()
	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}

// forward hands p to every active consumer, blocking until each takes it so
// arrival order is kept.
func (e *Endpoint) forward(p *paho.Publish) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ch, done := range e.subscribers {
		select {
		case ch <- p:
		case <-done:
		}
	}
}

func (e *Endpoint) connection() (*autopaho.ConnectionManager, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cm == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}
	return e.cm, nil
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.publish), nil
}

func (e *Endpoint) publish(ctx context.Context, msg *core.Message) error {
	cm, err := e.connection()
	if err != nil {
		return err
	}
	pub, err := toPublish(msg, e.config)
	if err != nil {
		return err
	}
	if _, err := cm.Publish(ctx, pub); err != nil {
		return core.NewBackendError(e.desc.URI(), "publish", err)
	}
	return nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	cm, err := e.connection()
	if err != nil {
		return err
	}

	ch := make(chan *paho.Publish)
	done := make(chan struct{})
	e.mu.Lock()
	e.subscribers[ch] = done
	e.mu.Unlock()
	defer func() {
		close(done)
		e.mu.Lock()
		delete(e.subscribers, ch)
		e.mu.Unlock()
	}()

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: e.config.Topic, QoS: byte(e.config.QoS)}},
	}); err != nil {
		return fmt.Errorf("mqtt5 subscribe: %w", err)
	}
	defer cm.Unsubscribe(context.Background(), &paho.Unsubscribe{Topics: []string{e.config.Topic}})

	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-ch:
			if err := dispatch(fromPublish(p), nil, nil); err != nil {
				return err
			}
		}
	}
}

func toPublish(msg *core.Message, cfg Config) (*paho.Publish, error) {
	payload, err := codec.Encode(cfg.Format, msg.Body)
	if err != nil {
		return nil, core.ConfigErrorf("encode body: %v", err)
	}
	props := &paho.PublishProperties{ContentType: cfg.Format.ContentType()}
	for k, v := range msg.StringHeaders() {
		props.User = append(props.User, paho.UserProperty{Key: k, Value: v})
	}
	return &paho.Publish{
		Topic:      cfg.Topic,
		QoS:        byte(cfg.QoS),
		Retain:     cfg.Retain,
		Payload:    payload,
		Properties: props,
	}, nil
}

func fromPublish(p *paho.Publish) *core.Message {
	msg := core.NewMessage(p.Payload)
	if p.Properties != nil {
		for _, u := range p.Properties.User {
			msg.SetHeader(u.Key, u.Value)
		}
	}
	msg.SetHeader(HeaderTopic, p.Topic)
	msg.SetHeader(HeaderQoS, int(p.QoS))
	msg.SetHeader(HeaderRetained, p.Retain)
	return msg
}
