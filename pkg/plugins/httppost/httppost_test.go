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

package httppost

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

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

func startConsumer(t *testing.T, uri string, sink core.SinkFunc) *Consumer {
	t.Helper()
	ep, err := newEndpoint(t, uri)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	c, err := ep.CreateConsumer(sink)
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c.(*Consumer)
}

func TestParseConfig(t *testing.T) {
	ep, err := newEndpoint(t, "http:translate?listen=:8081")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.config.Path != "/translate" || ep.config.MaxBody != 1<<20 {
		t.Fatalf("unexpected config %+v", ep.config)
	}
	for _, uri := range []string{"http:translate", "http:translate?listen=:1&maxBody=0"} {
		if _, err := newEndpoint(t, uri); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestProducerNotSupported(t *testing.T) {
	ep, _ := newEndpoint(t, "http:translate?listen=:8081")
	if _, err := ep.CreateProducer(); !errors.Is(err, core.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestRequestReply(t *testing.T) {
	c := startConsumer(t, "http:translate?listen=127.0.0.1:0", func(ctx context.Context, msg *core.Message) error {
		msg.Body = strings.ToUpper(string(msg.Body.([]byte)))
		return nil
	})

	req, _ := http.NewRequest(http.MethodPost, "http://"+c.Addr().String()+"/translate", strings.NewReader("ciao"))
	req.Header.Set(core.ClientIDHeader, "tester")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "CIAO" {
		t.Fatalf("unexpected reply %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get(MessageIDHeader) == "" {
		t.Fatal("expected message id header")
	}
}

func TestSinkFailure(t *testing.T) {
	c := startConsumer(t, "http:x?listen=127.0.0.1:0", func(ctx context.Context, msg *core.Message) error {
		return core.ConfigErrorf("missing targetLanguage")
	})
	resp, err := http.Post("http://"+c.Addr().String()+"/x", "text/plain", strings.NewReader("ciao"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(string(body), "missing targetLanguage") {
		t.Fatalf("unexpected reply %d %q", resp.StatusCode, body)
	}
}

func TestRejectsLargeBodyAndWrongMethod(t *testing.T) {
	calls := 0
	c := startConsumer(t, "http:x?listen=127.0.0.1:0&maxBody=4", func(ctx context.Context, msg *core.Message) error {
		calls++
		return nil
	})
	base := "http://" + c.Addr().String() + "/x"

	resp, err := http.Post(base, "text/plain", strings.NewReader("too long"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if calls != 0 {
		t.Fatalf("expected no deliveries, got %d", calls)
	}
}

func TestStartTwice(t *testing.T) {
	c := startConsumer(t, "http:x?listen=127.0.0.1:0", func(ctx context.Context, msg *core.Message) error { return nil })
	if err := c.Start(context.Background()); !errors.Is(err, core.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}
