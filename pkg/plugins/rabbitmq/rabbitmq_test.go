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

package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

func newEndpoint(t *testing.T, uri string) *Endpoint {
	t.Helper()
	d, err := endpoint.Parse(uri, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ep, err := New(slog.New(slog.NewTextHandler(io.Discard, nil))).NewEndpoint(d)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	return ep.(*Endpoint)
}

func TestParseConfig(t *testing.T) {
	ep := newEndpoint(t, "rabbitmq:jobs?url=amqp://localhost&prefetch=5&durable=false")
	if ep.config.Prefetch != 5 || ep.config.Durable || !ep.config.Requeue {
		t.Fatalf("unexpected config %+v", ep.config)
	}

	for _, uri := range []string{"rabbitmq:jobs", "rabbitmq:jobs?url=x&prefetch=-1", "rabbitmq:?url=x"} {
		d, _ := endpoint.Parse(uri, nil)
		if _, err := New(slog.Default()).NewEndpoint(d); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestPublishBeforeConnect(t *testing.T) {
	ep := newEndpoint(t, "rabbitmq:jobs?url=amqp://localhost")
	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConsumerBeforeConnect(t *testing.T) {
	ep := newEndpoint(t, "rabbitmq:jobs?url=amqp://localhost")
	c, _ := ep.CreateConsumer(core.SinkFunc(func(context.Context, *core.Message) error { return nil }))
	lc := c.(*core.LoopConsumer)
	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-lc.Done()
	if !errors.Is(lc.Err(), core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", lc.Err())
	}
}

func TestToPublishing(t *testing.T) {
	msg := core.NewMessage("payload")
	msg.SetHeader("tenant", "acme")
	pub, err := toPublishing(msg, codec.FormatRaw)
	if err != nil {
		t.Fatalf("toPublishing: %v", err)
	}
	if string(pub.Body) != "payload" || pub.MessageId != msg.ID || pub.Headers["tenant"] != "acme" {
		t.Fatalf("unexpected publishing %+v", pub)
	}
	if pub.ContentType != "application/octet-stream" {
		t.Fatalf("unexpected content type %s", pub.ContentType)
	}
}

func TestFromDelivery(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Second)
	msg := fromDelivery(amqp.Delivery{
		Body:        []byte("x"),
		MessageId:   "m-1",
		Timestamp:   ts,
		RoutingKey:  "jobs",
		DeliveryTag: 3,
		Headers:     amqp.Table{"tenant": "acme"},
	})
	if msg.ID != "m-1" || !msg.Timestamp.Equal(ts) {
		t.Fatalf("unexpected message %+v", msg)
	}
	if v, _ := msg.HeaderString("tenant"); v != "acme" {
		t.Fatalf("expected tenant header, got %q", v)
	}
	if v, _ := msg.HeaderString(HeaderDeliveryTag); v != "3" {
		t.Fatalf("expected delivery tag 3, got %q", v)
	}
}
