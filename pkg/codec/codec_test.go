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

package codec

import (
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

func TestEncodePassthrough(t *testing.T) {
	for _, f := range []Format{FormatRaw, FormatJSON, FormatMsgpack} {
		got, err := Encode(f, "ciao")
		if err != nil || string(got) != "ciao" {
			t.Errorf("%s: expected passthrough, got %q %v", f, got, err)
		}
	}
}

func TestEncodeStructured(t *testing.T) {
	body := map[string]any{"text": "ciao"}

	j, err := Encode(FormatJSON, body)
	if err != nil || string(j) != `{"text":"ciao"}` {
		t.Fatalf("json: %s %v", j, err)
	}

	m, err := Encode(FormatMsgpack, body)
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	var back map[string]any
	if err := Decode(FormatMsgpack, m, &back); err != nil || back["text"] != "ciao" {
		t.Fatalf("msgpack decode: %v %v", back, err)
	}

	if _, err := Encode(FormatRaw, body); err == nil {
		t.Fatal("expected raw format to reject structured body")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("MsgPack"); err != nil || f != FormatMsgpack {
		t.Fatalf("expected msgpack, got %s %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestBindDefaultsToJSON(t *testing.T) {
	d, _ := endpoint.Parse("kafka:t", nil)
	var f Format
	b := endpoint.NewBinder(d)
	Bind(b, &f)
	if err := b.Finish(); err != nil || f != FormatJSON {
		t.Fatalf("expected json default, got %s %v", f, err)
	}
}
