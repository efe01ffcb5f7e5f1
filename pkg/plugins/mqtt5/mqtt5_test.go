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

package mqtt5

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/eclipse/paho.golang/paho"

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
	ep := newEndpoint(t, "mqtt5:sensors/+/temp?broker=mqtt://localhost:1883&qos=2&clientId=me")
	if ep.config.Topic != "sensors/+/temp" || ep.config.QoS != 2 || ep.config.ClientID != "me" {
		t.Fatalf("unexpected config %+v", ep.config)
	}
	for _, uri := range []string{"mqtt5:t", "mqtt5:t?broker=mqtt://h:1883&qos=3", "mqtt5:t?broker=nohost"} {
		d, _ := endpoint.Parse(uri, nil)
		if _, err := New(slog.Default()).NewEndpoint(d); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestPublishBeforeConnect(t *testing.T) {
	ep := newEndpoint(t, "mqtt5:t?broker=mqtt://localhost:1883")
	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestPublishMapping(t *testing.T) {
	ep := newEndpoint(t, "mqtt5:t?broker=mqtt://localhost:1883&qos=0&retain=true")
	msg := core.NewMessage("21.5")
	msg.SetHeader("unit", "celsius")

	pub, err := toPublish(msg, ep.config)
	if err != nil {
		t.Fatalf("toPublish: %v", err)
	}
	if pub.QoS != 0 || !pub.Retain || string(pub.Payload) != "21.5" {
		t.Fatalf("unexpected publish %+v", pub)
	}

	back := fromPublish(pub)
	if v, _ := back.HeaderString("unit"); v != "celsius" {
		t.Fatalf("expected user property, got %q", v)
	}
	if v, _ := back.HeaderString(HeaderTopic); v != "t" {
		t.Fatalf("expected topic header, got %q", v)
	}
}

func TestForwardKeepsOrder(t *testing.T) {
	ep := newEndpoint(t, "mqtt5:t?broker=mqtt://localhost:1883")
	ch := make(chan *paho.Publish, 3)
	ep.subscribers[ch] = make(chan struct{})

	for _, topic := range []string{"a", "b", "c"} {
		ep.forward(&paho.Publish{Topic: topic})
	}
	for _, want := range []string{"a", "b", "c"} {
		if got := (<-ch).Topic; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
