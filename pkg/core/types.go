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

package core

import (
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message is the unit of data that flows between consumers and producers.
// Producers read request fields from Headers and Body and overwrite Body
// with the backend response.
type Message struct {
	ID        string
	Headers   map[string]any
	Body      any
	Timestamp time.Time
}

func NewMessage(body any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Headers:   make(map[string]any),
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
}

func (m *Message) Header(name string) (any, bool) {
	if m.Headers == nil {
		return nil, false
	}
	v, ok := m.Headers[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// HeaderString returns the header formatted as a string. Empty values are
// reported as absent.
func (m *Message) HeaderString(name string) (string, bool) {
	v, ok := m.Header(name)
	if !ok {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return s, s != ""
}

func (m *Message) HeaderInt64(name string) (int64, bool, error) {
	v, ok := m.Header(name)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return int64(t), true, nil
	case int32:
		return int64(t), true, nil
	case int64:
		return t, true, nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("header %s: %w", name, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("header %s: unsupported type %T", name, v)
	}
}

func (m *Message) SetHeader(name string, value any) {
	if m.Headers == nil {
		m.Headers = make(map[string]any)
	}
	m.Headers[name] = value
}

// StringHeaders returns the headers that can be carried as plain strings by
// byte-oriented transports.
func (m *Message) StringHeaders() map[string]string {
	out := make(map[string]string, len(m.Headers))
	for k := range m.Headers {
		if s, ok := m.HeaderString(k); ok {
			out[k] = s
		}
	}
	return out
}

func (m *Message) Copy() *Message {
	return &Message{
		ID:        m.ID,
		Headers:   maps.Clone(m.Headers),
		Body:      m.Body,
		Timestamp: m.Timestamp,
	}
}

// Capabilities declares which sides of an endpoint a backend can create.
type Capabilities struct {
	Producer bool
	Consumer bool
}

var (
	ProducerOnly  = Capabilities{Producer: true}
	ConsumerOnly  = Capabilities{Consumer: true}
	Bidirectional = Capabilities{Producer: true, Consumer: true}
)

func (c Capabilities) String() string {
	switch {
	case c.Producer && c.Consumer:
		return "producer,consumer"
	case c.Producer:
		return "producer"
	case c.Consumer:
		return "consumer"
	default:
		return "none"
	}
}

// Route connects a consumer endpoint to a producer endpoint.
type Route struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}
