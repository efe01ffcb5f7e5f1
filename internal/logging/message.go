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

package logging

import (
	"log/slog"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// MessageLogger writes one line per message moving along a route.
type MessageLogger struct {
	logger *slog.Logger
}

func NewMessageLogger(logger *slog.Logger) *MessageLogger {
	return &MessageLogger{logger: logger}
}

// Log records msg at stage ("received", "processed" or "failed") of route.
func (l *MessageLogger) Log(msg *core.Message, route core.Route, stage string) {
	l.logger.Info("message",
		"message_id", msg.ID,
		"route", route.Name,
		"stage", stage,
		"from", route.From,
		"to", route.To,
		"body_size", BodySize(msg.Body),
		"headers", len(msg.Headers),
		"timestamp", msg.Timestamp,
	)
}

// BodySize reports the length of byte and string bodies, and -1 for
// structured ones.
func BodySize(body any) int {
	switch b := body.(type) {
	case nil:
		return 0
	case []byte:
		return len(b)
	case string:
		return len(b)
	default:
		return -1
	}
}
