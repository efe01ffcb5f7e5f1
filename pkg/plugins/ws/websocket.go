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

// Package ws exchanges frames over WebSocket connections. An endpoint
// either accepts client connections on a listen address or dials a remote
// server, never both.
//
//	ws:<path>?listen=:8080
//	ws:<name>?url=ws://host:8080/path
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "ws"

const (
	HeaderClientID   = "WebsocketClientId"
	HeaderRemoteAddr = "WebsocketRemoteAddr"
	HeaderDelivered  = "WebsocketDelivered"
)

const shutdownGrace = 5 * time.Second

type Config struct {
	Path      string
	Listen    string
	URL       string
	Binary    bool
	ReadLimit int64
	Format    codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Path: "/" + strings.TrimPrefix(d.Path(), "/")}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "listen"}, &cfg.Listen)
	b.String(endpoint.Option{Name: "url"}, &cfg.URL)
	b.Bool(endpoint.Option{Name: "binary", Default: "false"}, &cfg.Binary)
	b.Int64(endpoint.Option{Name: "readLimit", Default: "1048576"}, &cfg.ReadLimit)
	codec.Bind(b, &cfg.Format)
	b.Check((cfg.Listen == "") != (cfg.URL == ""), "exactly one of listen or url is required")
	b.Check(cfg.ReadLimit > 0, "option readLimit must be positive")
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
	return &Endpoint{
		desc:   d,
		config: cfg,
		logger: c.logger.With("endpoint", d.URI()),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*peer),
	}, nil
}

// peer is one WebSocket connection. gorilla connections allow a single
// concurrent writer, so writes go through mu.
type peer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(messageType, data)
}

type Endpoint struct {
	desc     *endpoint.Descriptor
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	server  *http.Server
	addr    net.Addr
	remote  *peer
	clients map[string]*peer
	inbound chan *core.Message
	closed  chan struct{}
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

// Addr returns the bound listen address, or nil in dial mode.
func (e *Endpoint) Addr() net.Addr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.addr
}

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	e.inbound = make(chan *core.Message)
	e.closed = make(chan struct{})
	e.mu.Unlock()

	if e.config.URL != "" {
		return e.dial(ctx)
	}
	return e.listen()
}

func (e *Endpoint) listen() error {
	ln, err := net.Listen("tcp", e.config.Listen)
	if err != nil {
		return fmt.Errorf("ws listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(e.config.Path, e.handleConnection)
	server := &http.Server{Handler: mux}

	e.mu.Lock()
	e.server = server
	e.addr = ln.Addr()
	e.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("ws server failed", "error", err)
		}
	}()
	e.logger.Info("ws endpoint listening", "addr", ln.Addr().String(), "path", e.config.Path)
	return nil
}

func (e *Endpoint) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.config.URL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	conn.SetReadLimit(e.config.ReadLimit)
	p := &peer{id: e.desc.Path(), conn: conn}

	e.mu.Lock()
	e.remote = p
	inbound, closed := e.inbound, e.closed
	e.mu.Unlock()

	go e.readLoop(p, conn.RemoteAddr().String(), inbound, closed)
	e.logger.Info("ws endpoint connected", "url", e.config.URL)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	server, remote, closed := e.server, e.remote, e.closed
	clients := e.clients
	e.server, e.remote, e.addr = nil, nil, nil
	e.inbound, e.closed = nil, nil
	e.clients = make(map[string]*peer)
	e.mu.Unlock()

	if closed != nil {
		close(closed)
	}
	if remote != nil {
		remote.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		remote.conn.Close()
	}
	for _, p := range clients {
		p.conn.Close()
	}
	if server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (e *Endpoint) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("ws upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(e.config.ReadLimit)

	p := &peer{id: core.RemoteClientID(r), conn: conn}
	e.mu.Lock()
	if _, taken := e.clients[p.id]; taken {
		p.id += "-" + uuid.New().String()[:8]
	}
	e.clients[p.id] = p
	inbound, closed := e.inbound, e.closed
	e.mu.Unlock()

	defer func() {
		conn.Close()
		e.mu.Lock()
		delete(e.clients, p.id)
		e.mu.Unlock()
		e.logger.Info("ws client disconnected", "client_id", p.id)
	}()

	e.logger.Info("ws client connected", "client_id", p.id)
	e.readLoop(p, r.RemoteAddr, inbound, closed)
}

// readLoop hands every frame read from p to the active consumer, blocking
// while the consumer is busy.
func (e *Endpoint) readLoop(p *peer, remoteAddr string, inbound chan<- *core.Message, closed <-chan struct{}) {
	for {
		_, payload, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Error("ws read error", "client_id", p.id, "error", err)
			}
			return
		}

		msg := core.NewMessage(payload)
		msg.SetHeader(HeaderClientID, p.id)
		msg.SetHeader(HeaderRemoteAddr, remoteAddr)
		select {
		case inbound <- msg:
		case <-closed:
			return
		}
	}
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.send), nil
}

func (e *Endpoint) send(ctx context.Context, msg *core.Message) error {
	targets, err := e.targets(msg)
	if err != nil {
		return err
	}
	data, err := codec.Encode(e.config.Format, msg.Body)
	if err != nil {
		return core.ConfigErrorf("encode body: %v", err)
	}
	frame := websocket.TextMessage
	if e.config.Binary {
		frame = websocket.BinaryMessage
	}

	delivered := 0
	var errs []error
	for _, p := range targets {
		if err := p.write(frame, data); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", p.id, err))
			continue
		}
		delivered++
	}
	msg.SetHeader(HeaderDelivered, delivered)
	if len(errs) > 0 {
		return core.NewBackendError(e.desc.URI(), "write", errors.Join(errs...))
	}
	return nil
}

// targets selects the connections a message is written to: the dialled
// server, the client named by the WebsocketClientId header, or every
// connected client.
func (e *Endpoint) targets(msg *core.Message) ([]*peer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}
	if e.config.URL != "" {
		if e.remote == nil {
			return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
		}
		return []*peer{e.remote}, nil
	}
	if id, ok := msg.HeaderString(HeaderClientID); ok {
		p, found := e.clients[id]
		if !found {
			return nil, core.NewBackendError(e.desc.URI(), "write", fmt.Errorf("client %s is not connected", id))
		}
		return []*peer{p}, nil
	}
	out := make([]*peer, 0, len(e.clients))
	for _, p := range e.clients {
		out = append(out, p)
	}
	return out, nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(e.desc.URI(), sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	e.mu.RLock()
	inbound, closed := e.inbound, e.closed
	e.mu.RUnlock()
	if inbound == nil {
		return fmt.Errorf("%w: %s", core.ErrNotConnected, e.desc.URI())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case msg := <-inbound:
			if err := dispatch(msg, nil, nil); err != nil {
				return err
			}
		}
	}
}
