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

// Package kafka publishes messages to and consumes messages from a Kafka
// topic.
//
//	kafka:<topic>?brokers=host1:9092,host2:9092&groupId=orders&marshal=json
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "kafka"

const (
	HeaderKey       = "KafkaKey"
	HeaderTopic     = "KafkaTopic"
	HeaderPartition = "KafkaPartition"
	HeaderOffset    = "KafkaOffset"
)

type Config struct {
	Topic   string
	Brokers []string
	GroupID string
	MaxWait time.Duration
	Format  codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Topic: d.Path()}
	b := endpoint.NewBinder(d)
	b.Strings(endpoint.Option{Name: "brokers", Required: true}, &cfg.Brokers)
	b.String(endpoint.Option{Name: "groupId"}, &cfg.GroupID)
	b.Duration(endpoint.Option{Name: "maxWait", Default: "500ms"}, &cfg.MaxWait)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Topic != "", "topic is required")
	if cfg.GroupID == "" {
		cfg.GroupID = "connector-" + cfg.Topic
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

	mu     sync.RWMutex
	writer *kafka.Writer
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writer = &kafka.Writer{
		Addr:     kafka.TCP(e.config.Brokers...),
		Topic:    e.config.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	e.logger.Info("kafka endpoint connected",
		"brokers", strings.Join(e.config.Brokers, ","),
		"topic", e.config.Topic,
	)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return nil
	}
	err := e.writer.Close()
	e.writer = nil
	return err
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.send), nil
}

func (e *Endpoint) send(ctx context.Context, msg *core.Message) error {
	e.mu.RLock()
	w := e.writer
	e.mu.RUnlock()
	if w == nil {
		return fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}

	km, err := toKafka(msg, e.config.Format)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, km); err != nil {
		return core.NewBackendError(e.desc.URI(), "write", err)
	}
	return nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  e.config.Brokers,
		Topic:    e.config.Topic,
		GroupID:  e.config.GroupID,
		MaxWait:  e.config.MaxWait,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		ack := func(ctx context.Context) error { return reader.CommitMessages(ctx, km) }
		if err := dispatch(fromKafka(km), ack, nil); err != nil {
			return err
		}
	}
}

// toKafka keys the record by the KafkaKey header, else the message ID, and
// carries string headers as record headers.
func toKafka(msg *core.Message, f codec.Format) (kafka.Message, error) {
	value, err := codec.Encode(f, msg.Body)
	if err != nil {
		return kafka.Message{}, core.ConfigErrorf("encode body: %v", err)
	}
	key, ok := msg.HeaderString(HeaderKey)
	if !ok {
		key = msg.ID
	}

	km := kafka.Message{Key: []byte(key), Value: value}
	for k, v := range msg.StringHeaders() {
		if k == HeaderKey {
			continue
		}
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km, nil
}

func fromKafka(km kafka.Message) *core.Message {
	msg := core.NewMessage(km.Value)
	if !km.Time.IsZero() {
		msg.Timestamp = km.Time
	}
	for _, h := range km.Headers {
		msg.SetHeader(h.Key, string(h.Value))
	}
	msg.SetHeader(HeaderKey, string(km.Key))
	msg.SetHeader(HeaderTopic, km.Topic)
	msg.SetHeader(HeaderPartition, strconv.Itoa(km.Partition))
	msg.SetHeader(HeaderOffset, strconv.FormatInt(km.Offset, 10))
	return msg
}
