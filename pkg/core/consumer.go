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
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// AckFunc settles a received event with the backend. The context it gets is
// not cancelled by Stop.
type AckFunc func(ctx context.Context) error

// Dispatch hands one received event to the sink and settles it: ack on
// success, nack on sink failure. Either may be nil when the backend has no
// settlement. A non-nil return means the receive loop should exit.
type Dispatch func(msg *Message, ack, nack AckFunc) error

// ReceiveLoop receives events until ctx is cancelled, calling dispatch once
// per event in arrival order.
type ReceiveLoop func(ctx context.Context, dispatch Dispatch) error

// LoopConsumer runs a backend receive loop on its own goroutine and delivers
// every event synchronously to the sink, so at most one dispatch is in flight
// and order is preserved.
type LoopConsumer struct {
	name   string
	sink   Sink
	loop   ReceiveLoop
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewLoopConsumer(name string, sink Sink, logger *slog.Logger, loop ReceiveLoop) *LoopConsumer {
	return &LoopConsumer{
		name:   name,
		sink:   sink,
		loop:   loop,
		logger: logger,
	}
}

func (c *LoopConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return fmt.Errorf("%w: %s", ErrAlreadyStarted, c.name)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.err = nil

	go func() {
		defer close(done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("consumer panic recovered", "consumer", c.name, "error", r)
				c.setErr(fmt.Errorf("consumer %s panicked: %v", c.name, r))
			}
		}()

		err := c.loop(runCtx, c.dispatcher(runCtx))
		if err != nil && runCtx.Err() == nil {
			c.logger.Error("consumer loop failed", "consumer", c.name, "error", err)
			c.setErr(err)
		}
	}()

	c.logger.Info("consumer started", "consumer", c.name)
	return nil
}

// Stop cancels receiving and waits for the in-flight dispatch, if any, to
// complete. It returns ErrStopTimeout when ctx expires first.
func (c *LoopConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		c.logger.Info("consumer stopped", "consumer", c.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", ErrStopTimeout, c.name)
	}
}

// Done is closed when the receive loop has exited. It is nil before Start.
func (c *LoopConsumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the error that terminated the receive loop, if any.
func (c *LoopConsumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *LoopConsumer) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *LoopConsumer) dispatcher(runCtx context.Context) Dispatch {
	deliverCtx := context.WithoutCancel(runCtx)
	return func(msg *Message, ack, nack AckFunc) error {
		if err := c.sink.Deliver(deliverCtx, msg); err != nil {
			c.logger.Warn("sink rejected message",
				"consumer", c.name,
				"message_id", msg.ID,
				"error", err,
			)
			if nack != nil {
				if nerr := nack(deliverCtx); nerr != nil {
					c.logger.Error("nack failed", "consumer", c.name, "message_id", msg.ID, "error", nerr)
				}
			}
			return nil
		}
		if ack != nil {
			if err := ack(deliverCtx); err != nil {
				return fmt.Errorf("ack %s: %w", msg.ID, err)
			}
		}
		return nil
	}
}
