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

// Package amqp sends messages to and receives messages from an AMQP 1.0
// address, such as a queue on ActiveMQ Artemis or Azure Service Bus.
//
//	amqp:<address>?url=amqp://localhost:5672&credit=10
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/go-amqp"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "amqp"

const (
	HeaderAddress       = "AmqpAddress"
	HeaderCorrelationID = "AmqpCorrelationId"
)

type Config struct {
	Address string
	URL     string
	Credit  int
	Format  codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Address: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "url", Required: true}, &cfg.URL)
	b.Int(endpoint.Option{Name: "credit", Default: "1"}, &cfg.Credit)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Address != "", "address is required")
	b.Check(cfg.Credit > 0, "option credit must be > 0, got %d", cfg.Credit)
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

	mu       sync.RWMutex
	conn     *amqp.Conn
	sendSess *amqp.Session
	sender   *amqp.Sender
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(ctx, e.config.URL, nil)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	sess, err := conn.NewSession(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp send session: %w", err)
	}
	sender, err := sess.NewSender(ctx, e.config.Address, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp sender: %w", err)
	}

	e.mu.Lock()
	e.conn, e.sendSess, e.sender = conn, sess, sender
	e.mu.Unlock()
	e.logger.Info("amqp endpoint connected", "address", e.config.Address)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sender != nil {
		e.sender.Close(ctx)
	}
	if e.sendSess != nil {
		e.sendSess.Close(ctx)
	}
	var err error
	if e.conn != nil {
		err = e.conn.Close()
	}
	e.conn, e.sendSess, e.sender = nil, nil, nil
	return err
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.send), nil
}

func (e *Endpoint) send(ctx context.Context, msg *core.Message) error {
	e.mu.RLock()
	sender := e.sender
	e.mu.RUnlock()
	if sender == nil {
		return fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}

	am, err := toAMQP(msg, e.config.Format)
	if err != nil {
		return err
	}
	if err := sender.Send(ctx, am, nil); err != nil {
		return core.NewBackendError(e.desc.URI(), "send", err)
	}
	return nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}

	sess, err := conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("amqp consumer session: %w", err)
	}
	receiver, err := sess.NewReceiver(ctx, e.config.Address, &amqp.ReceiverOptions{
		Credit: int32(e.config.Credit),
	})
	if err != nil {
		sess.Close(context.Background())
		return fmt.Errorf("amqp receiver: %w", err)
	}
	defer func() {
		receiver.Close(context.Background())
		sess.Close(context.Background())
	}()

	for {
		am, err := receiver.Receive(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("amqp receive: %w", err)
		}

		ack := func(ctx context.Context) error { return receiver.AcceptMessage(ctx, am) }
		nack := func(ctx context.Context) error { return receiver.ReleaseMessage(ctx, am) }
		if err := dispatch(fromAMQP(am, e.config.Address), ack, nack); err != nil {
			return err
		}
	}
}

func toAMQP(msg *core.Message, f codec.Format) (*amqp.Message, error) {
	data, err := codec.Encode(f, msg.Body)
	if err != nil {
		return nil, core.ConfigErrorf("encode body: %v", err)
	}
	contentType := f.ContentType()
	props := map[string]any{}
	for k, v := range msg.StringHeaders() {
		props[k] = v
	}

	am := amqp.NewMessage(data)
	am.Properties = &amqp.MessageProperties{
		MessageID:   msg.ID,
		ContentType: &contentType,
	}
	if corr, ok := msg.HeaderString(HeaderCorrelationID); ok {
		am.Properties.CorrelationID = corr
	}
	am.ApplicationProperties = props
	return am, nil
}

func fromAMQP(am *amqp.Message, address string) *core.Message {
	msg := core.NewMessage(am.GetData())
	if p := am.Properties; p != nil {
		if id, ok := p.MessageID.(string); ok && id != "" {
			msg.ID = id
		}
		if p.CorrelationID != nil {
			msg.SetHeader(HeaderCorrelationID, fmt.Sprint(p.CorrelationID))
		}
	}
	for k, v := range am.ApplicationProperties {
		msg.SetHeader(k, v)
	}
	msg.SetHeader(HeaderAddress, address)
	return msg
}
