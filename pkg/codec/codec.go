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

// Package codec turns message bodies into bytes for byte-oriented
// transports.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

type Format string

const (
	FormatRaw     Format = "raw"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// MarshalOption is the endpoint option selecting the body format.
var MarshalOption = endpoint.Option{Name: "marshal", Default: string(FormatJSON)}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatRaw, FormatJSON, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown body format %q", s)
	}
}

// Bind reads the marshal option into dst.
func Bind(b *endpoint.Binder, dst *Format) {
	b.Func(MarshalOption, func(s string) error {
		f, err := ParseFormat(s)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	})
}

// ContentType returns the MIME type for bodies encoded as f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMsgpack:
		return "application/msgpack"
	default:
		return "application/octet-stream"
	}
}

// Encode returns body as bytes. Strings and byte slices pass through
// unchanged in every format; other values are marshalled with f, and
// rejected under FormatRaw.
func Encode(f Format, body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}

	switch f {
	case FormatJSON:
		return json.Marshal(body)
	case FormatMsgpack:
		return msgpack.Marshal(body)
	default:
		return nil, fmt.Errorf("cannot encode %T as raw bytes", body)
	}
}

// Decode unmarshals data encoded as f into v.
func Decode(f Format, data []byte, v any) error {
	switch f {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("cannot decode raw bytes into %T", v)
	}
}
