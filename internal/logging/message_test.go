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
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

func TestMessageLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewMessageLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	msg := core.NewMessage("ciao")
	msg.SetHeader("TranslateTargetLanguage", "en")
	l.Log(msg, core.Route{Name: "tr", From: "http:tr?listen=:8081", To: "translate:tr?operation=translateText"}, "processed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["route"] != "tr" || line["stage"] != "processed" || line["message_id"] != msg.ID {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["body_size"] != float64(4) || line["headers"] != float64(1) {
		t.Fatalf("unexpected sizes in %v", line)
	}
}

func TestBodySize(t *testing.T) {
	cases := []struct {
		body any
		want int
	}{
		{nil, 0},
		{[]byte("abc"), 3},
		{"hello", 5},
		{map[string]int{"a": 1}, -1},
	}
	for _, c := range cases {
		if got := BodySize(c.body); got != c.want {
			t.Errorf("BodySize(%v) = %d, want %d", c.body, got, c.want)
		}
	}
}
