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

// Package telegram receives chat messages sent to a bot and sends text
// messages from it.
//
//	telegram:<botName>?token=123:abc&chatId=42&pollTimeout=60
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "telegram"

const (
	HeaderChatID    = "TelegramChatId"
	HeaderMessageID = "TelegramMessageId"
	HeaderFrom      = "TelegramFrom"
)

type Config struct {
	Bot   string
	Token string
	// ChatID is the default recipient when a message carries no
	// TelegramChatId header.
	ChatID      int64
	PollTimeout int
	APIEndpoint string
	Format      codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Bot: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "token", Required: true}, &cfg.Token)
	b.Int64(endpoint.Option{Name: "chatId"}, &cfg.ChatID)
	b.Int(endpoint.Option{Name: "pollTimeout", Default: "60"}, &cfg.PollTimeout)
	b.String(endpoint.Option{Name: "apiEndpoint", Default: tgbotapi.APIEndpoint}, &cfg.APIEndpoint)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Bot != "", "bot name is required")
	b.Check(cfg.PollTimeout >= 0, "option pollTimeout must not be negative")
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
	// The token is a secret; log under the bot name only.
	return &Endpoint{desc: d, config: cfg, logger: c.logger.With("endpoint", Scheme+":"+cfg.Bot)}, nil
}

type Endpoint struct {
	desc   *endpoint.Descriptor
	config Config
	logger *slog.Logger

	mu  sync.RWMutex
	bot *tgbotapi.BotAPI
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) Connect(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(e.config.Token, e.config.APIEndpoint)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	e.mu.Lock()
	e.bot = bot
	e.mu.Unlock()
	e.logger.Info("telegram endpoint connected", "username", bot.Self.UserName)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	e.bot = nil
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) connection() (*tgbotapi.BotAPI, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.bot == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotConnected, Scheme+":"+e.config.Bot)
	}
	return e.bot, nil
}

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.send), nil
}

func (e *Endpoint) send(ctx context.Context, msg *core.Message) error {
	bot, err := e.connection()
	if err != nil {
		return err
	}
	chatID, err := e.chatID(msg)
	if err != nil {
		return err
	}
	text, err := codec.Encode(e.config.Format, msg.Body)
	if err != nil {
		return core.ConfigErrorf("encode body: %v", err)
	}
	if len(text) == 0 {
		return core.ConfigErrorf("telegram message text is empty")
	}

	sent, err := bot.Send(tgbotapi.NewMessage(chatID, string(text)))
	if err != nil {
		return core.NewBackendError(Scheme+":"+e.config.Bot, "sendMessage", err)
	}
	msg.SetHeader(HeaderMessageID, sent.MessageID)
	return nil
}

func (e *Endpoint) chatID(msg *core.Message) (int64, error) {
	id, ok, err := msg.HeaderInt64(HeaderChatID)
	if err != nil {
		return 0, core.ConfigErrorf("%v", err)
	}
	if ok {
		return id, nil
	}
	if e.config.ChatID == 0 {
		return 0, core.ConfigErrorf("no chat id: set header %s or option chatId", HeaderChatID)
	}
	return e.config.ChatID, nil
}

func (e *Endpoint) CreateConsumer(sink core.Sink) (core.Consumer, error) {
	return core.NewLoopConsumer(Scheme+":"+e.config.Bot, sink, e.logger, e.receive), nil
}

func (e *Endpoint) receive(ctx context.Context, dispatch core.Dispatch) error {
	bot, err := e.connection()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = e.config.PollTimeout
	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := fromUpdate(update)
			if msg == nil {
				continue
			}
			if err := dispatch(msg, nil, nil); err != nil {
				return err
			}
		}
	}
}

// fromUpdate returns nil for updates that carry no chat message.
func fromUpdate(u tgbotapi.Update) *core.Message {
	m := u.Message
	if m == nil {
		return nil
	}
	msg := core.NewMessage(m.Text)
	msg.SetHeader(HeaderMessageID, m.MessageID)
	if m.Chat != nil {
		msg.SetHeader(HeaderChatID, m.Chat.ID)
	}
	if m.From != nil {
		msg.SetHeader(HeaderFrom, m.From.UserName)
	}
	return msg
}
