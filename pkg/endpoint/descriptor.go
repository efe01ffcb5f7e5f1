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

// Package endpoint parses endpoint addresses and binds their options to
// typed per-backend configuration.
//
// An address has the form
//
//	scheme:remainingPath?key1=value1&key2=value2
//
// where the scheme selects the backend component, the remaining path is a
// backend-specific identifier and the query carries the options.
package endpoint

import (
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// Descriptor is an immutable, parsed endpoint address.
type Descriptor struct {
	scheme  string
	path    string
	options map[string]string
	uri     string
}

// Parse builds a Descriptor from an address and an optional option map.
// Entries in params override options of the same name in the query.
func Parse(uri string, params map[string]string) (*Descriptor, error) {
	raw := strings.TrimSpace(uri)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, core.ConfigErrorf("address %q has no scheme", uri)
	}
	scheme = strings.ToLower(scheme)
	if !validScheme(scheme) {
		return nil, core.ConfigErrorf("address %q has invalid scheme %q", uri, scheme)
	}

	rest = strings.TrimPrefix(rest, "//")
	path, query, _ := strings.Cut(rest, "?")

	options := make(map[string]string)
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, core.ConfigErrorf("address %q: %v", uri, err)
		}
		for k, v := range values {
			if len(v) > 1 {
				return nil, core.ConfigErrorf("address %q: option %s given %d times", uri, k, len(v))
			}
			options[k] = v[0]
		}
	}
	maps.Copy(options, params)

	d := &Descriptor{
		scheme:  scheme,
		path:    path,
		options: options,
	}
	d.uri = d.normalize()
	return d, nil
}

func validScheme(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

func (d *Descriptor) normalize() string {
	var b strings.Builder
	b.WriteString(d.scheme)
	b.WriteByte(':')
	b.WriteString(d.path)
	keys := slices.Sorted(maps.Keys(d.options))
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(d.options[k]))
	}
	return b.String()
}

func (d *Descriptor) Scheme() string { return d.scheme }

// Path is the backend-specific identifier following the scheme.
func (d *Descriptor) Path() string { return d.path }

// URI is the normalized address, with options sorted by name. Two addresses
// that differ only in option order share a URI.
func (d *Descriptor) URI() string { return d.uri }

func (d *Descriptor) Option(name string) (string, bool) {
	v, ok := d.options[name]
	return v, ok
}

func (d *Descriptor) Options() map[string]string { return maps.Clone(d.options) }

func (d *Descriptor) String() string { return d.uri }
