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

package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

func newEndpoint(t *testing.T, uri string) (*Endpoint, error) {
	t.Helper()
	d, err := endpoint.Parse(uri, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ep, err := New(slog.New(slog.NewTextHandler(io.Discard, nil))).NewEndpoint(d)
	if err != nil {
		return nil, err
	}
	return ep.(*Endpoint), nil
}

func TestParseConfig(t *testing.T) {
	ep, err := newEndpoint(t, "redis:events?addr=localhost:6379&db=2&marshal=msgpack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.config.Channel != "events" || ep.config.DB != 2 || ep.config.Format != "msgpack" {
		t.Fatalf("unexpected config %+v", ep.config)
	}

	for _, uri := range []string{"redis:events", "redis:events?addr=h:1&db=-1", "redis:events?addr=h:1&marshal=xml"} {
		if _, err := newEndpoint(t, uri); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestPatternEndpointHasNoProducer(t *testing.T) {
	ep, _ := newEndpoint(t, "redis:events.*?addr=localhost:6379&pattern=true")
	if _, err := ep.CreateProducer(); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestPublishBeforeConnect(t *testing.T) {
	ep, _ := newEndpoint(t, "redis:events?addr=localhost:6379")
	p, err := ep.CreateProducer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestFromRedis(t *testing.T) {
	msg := fromRedis(&goredis.Message{Channel: "events.a", Pattern: "events.*", Payload: "hello"})
	if string(msg.Body.([]byte)) != "hello" {
		t.Fatalf("unexpected body %v", msg.Body)
	}
	if v, _ := msg.HeaderString(HeaderChannel); v != "events.a" {
		t.Fatalf("unexpected channel %q", v)
	}
	if v, _ := msg.HeaderString(HeaderPattern); v != "events.*" {
		t.Fatalf("unexpected pattern %q", v)
	}
}
