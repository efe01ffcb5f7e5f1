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

package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"

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

func startServer(t *testing.T) *Endpoint {
	t.Helper()
	ep, err := newEndpoint(t, "ws:chat?listen=127.0.0.1:0")
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	if err := ep.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { ep.Disconnect(context.Background()) })
	return ep
}

func collect(t *testing.T, ep *Endpoint) <-chan *core.Message {
	t.Helper()
	got := make(chan *core.Message, 4)
	c, _ := ep.CreateConsumer(core.SinkFunc(func(ctx context.Context, msg *core.Message) error {
		got <- msg
		return nil
	}))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	t.Cleanup(func() { c.Stop(context.Background()) })
	return got
}

func waitFor(t *testing.T, ch <-chan *core.Message) *core.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestParseConfig(t *testing.T) {
	ep, err := newEndpoint(t, "ws:chat?listen=:8080&binary=true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.config.Path != "/chat" || !ep.config.Binary || ep.config.ReadLimit != 1<<20 {
		t.Fatalf("unexpected config %+v", ep.config)
	}
	for _, uri := range []string{"ws:chat", "ws:chat?listen=:1&url=ws://h/chat", "ws:chat?listen=:1&readLimit=0"} {
		if _, err := newEndpoint(t, uri); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestSendBeforeConnect(t *testing.T) {
	ep, _ := newEndpoint(t, "ws:chat?listen=127.0.0.1:0")
	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestListenRoundTrip(t *testing.T) {
	ep := startServer(t)
	got := collect(t, ep)

	client, _, err := websocket.DefaultDialer.Dial("ws://"+ep.Addr().String()+"/chat", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := waitFor(t, got)
	if string(msg.Body.([]byte)) != "hello" {
		t.Fatalf("unexpected body %v", msg.Body)
	}
	clientID, ok := msg.HeaderString(HeaderClientID)
	if !ok {
		t.Fatal("expected client id header")
	}

	p, _ := ep.CreateProducer()
	reply := core.NewMessage("welcome")
	reply.SetHeader(HeaderClientID, clientID)
	if err := p.Process(context.Background(), reply); err != nil {
		t.Fatalf("process: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil || string(data) != "welcome" {
		t.Fatalf("unexpected reply %q %v", data, err)
	}
	if n, _ := reply.HeaderString(HeaderDelivered); n != "1" {
		t.Fatalf("expected one delivery, got %s", n)
	}

	unknown := core.NewMessage("x")
	unknown.SetHeader(HeaderClientID, "nobody")
	if err := p.Process(context.Background(), unknown); !errors.Is(err, core.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestDialMode(t *testing.T) {
	server := startServer(t)
	got := collect(t, server)

	ep, err := newEndpoint(t, "ws:upstream?url=ws://"+server.Addr().String()+"/chat")
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	if err := ep.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer ep.Disconnect(context.Background())

	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage(map[string]string{"k": "v"})); err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := waitFor(t, got)
	if string(msg.Body.([]byte)) != `{"k":"v"}` {
		t.Fatalf("unexpected body %s", msg.Body)
	}
}
