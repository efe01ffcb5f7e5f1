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

package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

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

// botServer fakes the Bot API methods used by the endpoint and records the
// form of every sendMessage call.
type botServer struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (s *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"gw","username":"gw_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		s.mu.Lock()
		s.sent = append(s.sent, map[string]string{"chat_id": r.FormValue("chat_id"), "text": r.FormValue("text")})
		s.mu.Unlock()
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":%s,"type":"private"},"text":"ok"}}`, r.FormValue("chat_id"))
	default:
		http.NotFound(w, r)
	}
}

func TestParseConfig(t *testing.T) {
	ep, err := newEndpoint(t, "telegram:gw?token=1:abc&chatId=42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.config.ChatID != 42 || ep.config.PollTimeout != 60 || ep.config.APIEndpoint != tgbotapi.APIEndpoint {
		t.Fatalf("unexpected config %+v", ep.config)
	}
	for _, uri := range []string{"telegram:gw", "telegram:gw?token=1:abc&chatId=me", "telegram:gw?token=1:abc&pollTimeout=-1"} {
		if _, err := newEndpoint(t, uri); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestSendMessage(t *testing.T) {
	fake := &botServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	d, _ := endpoint.Parse("telegram:gw?token=1:abc&chatId=42", map[string]string{
		"apiEndpoint": srv.URL + "/bot%s/%s",
	})
	raw, err := New(slog.New(slog.NewTextHandler(io.Discard, nil))).NewEndpoint(d)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	ep := raw.(*Endpoint)
	if err := ep.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	p, _ := ep.CreateProducer()

	msg := core.NewMessage("ciao")
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	override := core.NewMessage([]byte("salve"))
	override.SetHeader(HeaderChatID, int64(7))
	if err := p.Process(context.Background(), override); err != nil {
		t.Fatalf("process: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(fake.sent))
	}
	if fake.sent[0]["chat_id"] != "42" || fake.sent[0]["text"] != "ciao" {
		t.Errorf("unexpected first send %v", fake.sent[0])
	}
	if fake.sent[1]["chat_id"] != "7" || fake.sent[1]["text"] != "salve" {
		t.Errorf("unexpected second send %v", fake.sent[1])
	}
	if id, _ := msg.HeaderString(HeaderMessageID); id != "77" {
		t.Errorf("expected message id header, got %q", id)
	}
}

func TestSendWithoutChatID(t *testing.T) {
	ep, _ := newEndpoint(t, "telegram:gw?token=1:abc")
	ep.bot = &tgbotapi.BotAPI{}
	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestSendBeforeConnect(t *testing.T) {
	ep, _ := newEndpoint(t, "telegram:gw?token=1:abc&chatId=1")
	p, _ := ep.CreateProducer()
	if err := p.Process(context.Background(), core.NewMessage("x")); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestFromUpdate(t *testing.T) {
	if fromUpdate(tgbotapi.Update{UpdateID: 1}) != nil {
		t.Fatal("expected nil for update without message")
	}
	msg := fromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		Text:      "hello",
		Chat:      &tgbotapi.Chat{ID: 42},
		From:      &tgbotapi.User{UserName: "ana"},
	}})
	if msg.Body != "hello" {
		t.Fatalf("unexpected body %v", msg.Body)
	}
	if id, _, _ := msg.HeaderInt64(HeaderChatID); id != 42 {
		t.Fatalf("unexpected chat id %d", id)
	}
	if from, _ := msg.HeaderString(HeaderFrom); from != "ana" {
		t.Fatalf("unexpected sender %q", from)
	}
}
