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

import "context"

// Producer sends a message to a backend and writes the response back into
// the message. Process runs synchronously on the caller's goroutine and is
// safe for concurrent use across distinct messages.
type Producer interface {
	Process(ctx context.Context, msg *Message) error
}

// Consumer receives backend events and hands them to its sink.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Sink interface {
	Deliver(ctx context.Context, msg *Message) error
}

type SinkFunc func(ctx context.Context, msg *Message) error

func (f SinkFunc) Deliver(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type ProducerFunc func(ctx context.Context, msg *Message) error

func (f ProducerFunc) Process(ctx context.Context, msg *Message) error { return f(ctx, msg) }
