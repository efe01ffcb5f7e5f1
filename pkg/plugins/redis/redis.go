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

// Package redis publishes to and subscribes on a Redis pub/sub channel.
//
//	redis:<channel>?addr=localhost:6379&db=0&pattern=false
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "redis"

const (
	HeaderChannel     = "RedisChannel"
	HeaderPattern     = "RedisPattern"
	HeaderSubscribers = "RedisSubscribers"
)

type Config struct {
	Channel  string
	Addr     string
	Password string
	DB       int
	// Pattern subscribes with PSUBSCRIBE, treating the channel as a glob.
	Pattern bool
	Format  codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Channel: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "addr", Required: true}, &cfg.Addr)
	b.String(endpoint.Option{Name: "password"}, &cfg.Password)
	b.Int(endpoint.Option{Name: "db", Default: "0"}, &cfg.DB)
	b.Bool(endpoint.Option{Name: "pattern", Default: "false"}, &cfg.Pattern)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Channel != "", "channel is required")
	b.Check(cfg.DB >= 0, "option db must not be negative")
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
	client *goredis.Client
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:     e.config.Addr,
		Password: e.config.Password,
		DB:       e.config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis ping: %w", err)
	}
	e.mu.Lock()
	e.client = client
	e.mu.Unlock()
	e.logger.Info("redis endpoint connected", "addr", e.config.Addr)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	client := e.client
	e.client = nil
	e.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

func (e *Endpoint) connection() (*goredis.Client, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}
	return e.client, nil
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	if e.config.Pattern {
		return nil, core.ConfigErrorf("cannot publish to pattern channel %q", e.config.Channel)
	}
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
	n, err := client.Publish(ctx, e.config.Channel, payload).Result()
	if err != nil {
		return core.NewBackendError(e.desc.URI(), "publish", err)
	}
	msg.SetHeader(HeaderSubscribers, n)
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

	var sub *goredis.PubSub
	if e.config.Pattern {
		sub = client.PSubscribe(ctx, e.config.Channel)
	} else {
		sub = client.Subscribe(ctx, e.config.Channel)
	}
	defer sub.Close()

	for {
		m, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, goredis.ErrClosed) {
				return nil
			}
			return fmt.Errorf("redis receive: %w", err)
		}
		if err := dispatch(fromRedis(m), nil, nil); err != nil {
			return err
		}
	}
}

func fromRedis(m *goredis.Message) *core.Message {
	msg := core.NewMessage([]byte(m.Payload))
	msg.SetHeader(HeaderChannel, m.Channel)
	if m.Pattern != "" {
		msg.SetHeader(HeaderPattern, m.Pattern)
	}
	return msg
}
