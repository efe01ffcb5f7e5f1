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

// Package httppost accepts HTTP POST requests as messages and answers each
// request with the message body once the route has processed it.
//
//	http:<path>?listen=:8081&maxBody=1048576
package httppost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "http"

const (
	HeaderClientID    = "HttpClientId"
	HeaderPath        = "HttpPath"
	HeaderContentType = "HttpContentType"
)

// MessageIDHeader carries the message ID on every reply.
const MessageIDHeader = "X-Connector-Message-ID"

const shutdownGrace = 5 * time.Second

type Config struct {
	Path    string
	Listen  string
	MaxBody int64
	Format  codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Path: "/" + strings.TrimPrefix(d.Path(), "/")}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "listen", Required: true}, &cfg.Listen)
	b.Int64(endpoint.Option{Name: "maxBody", Default: "1048576"}, &cfg.MaxBody)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.MaxBody > 0, "option maxBody must be positive")
	return cfg, b.Finish()
}

type Component struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Component { return &Component{logger: logger} }

func (c *Component) Scheme() string                  { return Scheme }
func (c *Component) Capabilities() core.Capabilities { return core.ConsumerOnly }

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
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return nil, endpoint.ProducerNotSupported(e.desc)
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return &Consumer{endpoint: e, sink: sink, logger: e.logger}, nil
}

// Consumer serves one HTTP listener. Requests are delivered to the sink
// concurrently, each on its request's goroutine.
type Consumer struct {
	endpoint *Endpoint
	sink     core.Sink
	logger   *slog.Logger

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return fmt.Errorf("%w: %s", core.ErrAlreadyStarted, c.endpoint.desc.URI())
	}

	ln, err := net.Listen("tcp", c.endpoint.config.Listen)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(c.endpoint.config.Path, c.handlePost)
	server := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	c.server = server
	c.addr = ln.Addr()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("http server failed", "error", err)
		}
	}()
	c.logger.Info("http consumer listening", "addr", ln.Addr().String(), "path", c.endpoint.config.Path)
	return nil
}

// Stop stops accepting requests and waits for in-flight ones until ctx
// expires.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.server = nil
	c.mu.Unlock()
	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrStopTimeout, c.endpoint.desc.URI(), err)
	}
	c.logger.Info("http consumer stopped")
	return nil
}

// Addr returns the bound listen address while the consumer is running.
func (c *Consumer) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *Consumer) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, c.endpoint.config.MaxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	msg := core.NewMessage(body)
	msg.SetHeader(HeaderClientID, core.RemoteClientID(r))
	msg.SetHeader(HeaderPath, r.URL.Path)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		msg.SetHeader(HeaderContentType, ct)
	}

	w.Header().Set(MessageIDHeader, msg.ID)
	if err := c.sink.Deliver(r.Context(), msg); err != nil {
		c.logger.Warn("sink rejected request", "message_id", msg.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reply, err := codec.Encode(c.endpoint.config.Format, msg.Body)
	if err != nil {
		c.logger.Error("encode reply failed", "message_id", msg.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	contentType := c.endpoint.config.Format.ContentType()
	if _, isBytes := msg.Body.([]byte); isBytes {
		contentType = "application/octet-stream"
	} else if _, isString := msg.Body.(string); isString {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(reply)
}
